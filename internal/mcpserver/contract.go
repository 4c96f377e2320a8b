package mcpserver

// TaskFormatContract describes how a task note is laid out on disk.
const TaskFormatContract = `# Almanac Task Format

A task is a Markdown note whose YAML frontmatter has a ` + "`tags`" + ` list containing ` + "`task`" + `.

## One-off task

` + "```" + `markdown
---
title: Renew passport
zettelid: 240301abc
date: "2024-03-01T09:30:00"
dateCreated: "2024-03-01T09:30:00"
dateModified: "2024-03-01T09:30:00"
status: open            # open | in-progress | done
due: 2024-03-15         # YYYY-MM-DD, optional
tags: [task, errands]
priority: normal        # low | normal | high
contexts: [town]
---
# Renew passport
` + "```" + `

## Recurring task

` + "```" + `yaml
recurrence:
  frequency: weekly       # daily | weekly | monthly | yearly
  days_of_week: [mon, thu] # weekly only
  day_of_month: 15        # monthly; yearly (month comes from dateCreated)
complete_instances: [2024-03-04]
` + "```" + `

Recurring tasks have no ` + "`status`" + `. A day is done when its date is listed in
` + "`complete_instances`" + `; toggling adds or removes that date.

## Rules

1. Archived tasks carry the ` + "`archive`" + ` tag and only appear in the archive view.
2. Overdue means a due date before the reference day and not done; overdue tasks sort first,
   then by priority (high, normal, low), then by due date.
3. Notes under ` + "`templates/`" + ` or ` + "`.zk/`" + ` are never indexed.
4. Unknown frontmatter keys are kept as they are when a tool rewrites a task.
`

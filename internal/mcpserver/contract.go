package mcpserver

// FrontBlockContract describes the front-block conventions the engine reads.
// Clients should follow it when they write documents by hand.
const FrontBlockContract = `# Org Tree Front-Block Contract

Documents are UTF-8 Markdown files. Metadata lives in a front-block: a line
containing only ` + "`---`" + `, ` + "`key: value`" + ` lines, and a closing ` + "`---`" + ` line.

## Values

- Scalars: ` + "`status: active`" + `. Quotes are optional and stripped.
- Lists: inline ` + "`tags: [auth, go]`" + ` or block form with ` + "`  - item`" + ` lines.
- Empty values and ` + "`null`" + ` are null.
- Unknown keys are preserved on rewrite.

## Kinds

The ` + "`type`" + ` field wins when it names a kind (` + "`task`" + `, ` + "`reminder`" + `,
` + "`knowledge`" + `, ` + "`inbox-item`" + `, ` + "`project`" + `). Otherwise the top-level folder decides:
` + "`tasks/`" + `, ` + "`reminders/`" + `, ` + "`knowledge/`" + `, ` + "`inbox/`" + `, ` + "`projects/`" + `.

## Tasks

` + "`status`" + `: active | blocked | review | backlog | incubating | paused | complete.
Without a status the subfolder (` + "`tasks/backlog/`" + `, ...) decides, else active.
Blocked tasks list their blockers in ` + "`blocked-by`" + `.

## Reminders

` + "```" + `markdown
---
type: reminder
status: pending            # pending | snoozed | ongoing | completed | dismissed
created: 2026-10-18
remind-at: 2026-10-20T09:00
repeat: null               # daily | weekly | monthly | custom
snoozed-until: null
completed: null
tags: [admin]
---

# Call the bank
` + "```" + `

- Timestamps: ` + "`2026-10-20`" + `, ` + "`2026-10-20T09:00`" + `, ` + "`2026-10-20 09:00`" + ` or RFC 3339.
  Zone-less values use the local zone.
- Completed and dismissed reminders move to ` + "`reminders/completed/`" + `.

## Tags

` + "`tags`" + ` is a list or a comma/space separated string. Tags are lowercased and a
leading ` + "`#`" + ` is dropped. Each tag gets a generated page under ` + "`tags/`" + `; do not
edit generated pages by hand.

## Links

Use ` + "`[[target]]`" + ` or ` + "`[[target|alias]]`" + `; the target is a path without ` + "`.md`" + `
or a file stem.
`

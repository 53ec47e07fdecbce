// Package core reconciles uploaded stock reports against a product catalog.
//
// This package holds the domain logic independent of any transport. It is
// used by the web handlers, the stockctl CLI and tests without modification.
//
// # Pipeline
//
// An upload flows through five stages:
//
//  1. [Decode] reads a delimited file or the first worksheet of a workbook
//     into a [Sheet]. The first non-empty row is the header.
//  2. [ResolveColumns] binds the name, quantity, unit and category roles to
//     header columns by keyword. Name and quantity are mandatory.
//  3. [NormalizeRows] converts cells into [ParsedStockRow] values and
//     reports lossy conversions as [RowParseWarning].
//  4. [MatchRows] splits rows into matched and new products by trimmed,
//     case-folded name.
//  5. [BulkApplier] writes the rows the owner kept selected, one row at a
//     time, and counts created, updated and failed rows.
//
// # Sessions
//
// [Service] keeps one [ImportSession] per owner between upload and apply.
// The session moves Idle -> Parsed -> Reviewing -> Applying -> Idle. A new
// upload replaces a session under review but is rejected with
// [ErrApplyInFlight] while an apply runs. Applies for one owner are
// serialized by a lock.Locker; applies across owners are capped by an
// [ApplyLimiter].
//
// # Error Handling
//
// Parse failures abort the upload with [ErrUnsupportedFormat],
// [ErrMalformedInput] or [ErrUnresolvableColumns]. Apply failures never
// abort the batch; they become failed [RowResult] entries wrapping a
// [RowApplyError]. [MapError] turns any of these into a coded [UserMessage].
//
// # Audit
//
// Every stock level overwrite appends an [AuditEntry] whose previous
// quantity is the value observed when the catalog was read.
package core

// Package mailer renders and delivers the account lifecycle emails.
//
// [Notifier] implements authflow.Notifier on top of a [Sender]. Two senders
// ship with the package: [SMTP] for real delivery and [Log] for local
// development. Templates are embedded HTML rendered with html/template, so
// user-supplied values (names, links) are escaped.
package mailer

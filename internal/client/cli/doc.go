// Package cli implements docctl, the administrative command-line client of
// the delivery service.
//
// Commands:
//
//	create <purchaser> <document> <purchase> [--device FP]
//	resolve <token> [--origin IP] [--signature UA] [--device FP]
//	analytics [--from T] [--to T] [--document ID] [--recent N]
//	block <purchaser> <document> <purchase> [--reason TEXT]
//	unblock <purchaser> <document> <purchase>
//	token [--subject NAME] [--role service|admin] [--ttl D]
//
// Results are printed to the configured writer as indented JSON.
package cli

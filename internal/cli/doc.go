// Package cli wires together the Cobra command tree for the ipcheck binary.
//
// It defines the root command and all subcommands (analyze, bundle, upload,
// check, config, models, cache, version), binds flags, reads configuration,
// runs the analysis pipeline locally, and maps its status to exit codes.
package cli

// Ipcheck runs an IP (copyright, patent, trademark) analysis over a code
// bundle with an LLM service and delivers a Markdown report.
//
// Each file of the bundle is analyzed separately within a total time budget.
// When the budget runs low the run stops and a partial report is delivered.
//
// Usage:
//
//	ipcheck analyze ip_bundle.zip          # analyze a zip bundle, report on stdout
//	ipcheck analyze ./src --out report.md  # analyze a directory
//	ipcheck analyze s3://bucket/key --email
//	ipcheck bundle ./src -o ip_bundle.zip  # pack a directory
//	ipcheck upload ip_bundle.zip           # trigger the deployed function
//	ipcheck check https://example.com/ipcheck
package main

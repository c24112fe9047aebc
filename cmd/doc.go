// Package cmd provides the command-line interface for livepen.
//
// # Available Commands
//
//   - serve: Start the live editor server
//   - render: Render a markup file once and print the preview document
//   - config: Show or validate the resolved configuration
//   - version: Print build information
//
// # Command Examples
//
//	// Start the editor on another port without opening a browser
//	livepen serve --port 3000 --no-open
//
//	// Edit files on disk; external saves reload into the editor
//	livepen serve --markup-file page.html --config-file tailwind.config.js
//
//	// Render without the Tailwind CLI
//	livepen render page.html --engine none > preview.html
//
// # Configuration
//
// Values come from flags, then LIVEPEN_* environment variables, then
// .livepen.yml (or the file named by --config or LIVEPEN_CONFIG_FILE).
package cmd

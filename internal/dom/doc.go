// Package dom provides element lookup over a parsed HTML document.
//
// A Document is registered with the application as the "dom" service.
// Modules reach their backing element through the bridge, which queries
// the document with an id selector ("#<module id>").
//
// Supported selectors are compound simple selectors without combinators:
//
//	div
//	#main
//	.panel
//	[data-module]
//	script[type="text/x-config"]
//	section.panel#nav[data-module=menu]
package dom

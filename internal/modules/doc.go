// Package modules provides the module types boxd registers by default.
//
//   - announcer broadcasts "module:ready" when it starts.
//   - journal logs and keeps the messages it is configured to listen to.
//   - router turns "link:clicked" messages into navigation.
//
// Each module reads its settings from the text/x-config script inside its
// element, for example:
//
//	<div data-module="journal">
//	  <script type="text/x-config">{"messages": ["navigate", "error"], "limit": 20}</script>
//	</div>
package modules

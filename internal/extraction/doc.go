// Package extraction adapts the external tools that turn a presentation file
// into a Deck: per-slide text plus one rendered image per slide.
//
// Rendering slides is not done here. A ManifestExtractor imports the deck.json
// an external tool already produced, a CommandExtractor runs the configured
// tool first, and SofficeConverter upgrades legacy .ppt files with LibreOffice.
// Dispatcher picks the path by file extension.
package extraction

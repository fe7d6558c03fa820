// Package file stores kbase configuration in a TOML file.
//
// Keys are dotted paths ("embedding.provider"); on disk each prefix
// becomes a table:
//
//	[embedding]
//	provider = "ollama"
package file

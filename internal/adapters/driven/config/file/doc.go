// Package file provides file-based implementations of driven port interfaces.
// Everything lives under ~/.privatetune unless PRIVATETUNE_HOME says otherwise.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage, watched with fsnotify
//   - TemplateStore: prompt templates kept as one .txt file per name
package file

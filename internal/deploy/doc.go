// Package deploy runs a deployment: it reads the manifest, transforms the
// build files, uploads them as pages and reports the platform's answers.
package deploy

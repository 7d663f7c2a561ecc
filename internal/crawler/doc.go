// Package crawler holds the page element model, the browser session
// contract and the error taxonomy shared by the scanner, annotator, worker and
// dispatcher packages.
package crawler

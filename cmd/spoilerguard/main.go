// Package main provides the entry point for the spoilerguard CLI.
//
// spoilerguard finds spoilers in web pages and replaces them with
// click-to-reveal placeholders. It matches a persistent keyword list and,
// optionally, asks a remote classifier about the remaining text.
//
// Usage:
//
//	spoilerguard keywords add <keyword>...
//	spoilerguard scan <url-or-file>...
//	spoilerguard serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}

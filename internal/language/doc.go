// Package language normalizes language codes for the pipeline.
//
// Codes are parsed with golang.org/x/text/language. Identity translation is
// decided on the base language only, and provider specific spellings (Google's
// "zh-CN" and "iw") are derived here rather than in each provider.
package language

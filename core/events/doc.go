// Package events defines the closed set of events exchanged between the
// session core and its endpoint clients.
//
// Endpoint payloads arrive loosely structured; clients decode them at the
// boundary into one of these variants and drop anything that does not match a
// known shape. Consumers switch on the concrete type, never on raw payloads.
package events

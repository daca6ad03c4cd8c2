// Package catalog holds the upstream metadata sources. Each subpackage
// implements provider.Source for one catalog: a thin client for the
// upstream API and a normalizer turning its answer into field results.
//
// Sources never retry or rate limit on their own; provider.Adapter does.
package catalog

// Package models defines the domain entities for label family trees, artist rosters and discography statistics.
//
// The package contains three categories of types:
//
// 1. MusicBrainz resources, decoded directly from the web service JSON (hyphenated keys)
//   - [Artist], [Label], [Release], [ReleaseGroup], [Relation]
//   - [LabelSummary] : the abbreviated label shape embedded in release label-info
//
// 2. Derived structures built by the aggregator and the tree builder
//   - [AggregatedLabel] : a label and how many releases cite it
//   - [RosterEntry] : an artist's tenure on a label, classified current or former
//   - [TreeNode] / [FamilyTree] : a label and its related labels, bounded by depth
//   - [GenreStat], [DecadeStat], [Collaboration], [Discography]
//
// 3. Persisted records
//   - [ExportRun] : summary of a playlist export, stored by the repositories package
package models

// Package dataset gathers the source images of a release.
//
// A Source resolves collection ids to manifests. DirSource reads them from
// disk, one directory per collection:
//
//	<root>/<collection id>/collection.yaml
//	<root>/<collection id>/<files...>
//
// A Collector merges the selected collections into one flat list of records,
// filtering by split, skipping files that are missing on disk and renaming
// files whose names collide across collections.
package dataset

package cpio

// HardlinkKey identifies the files that share one on-disk inode: same
// device, same inode number, same content digest (spec ยง4.4). Callers
// build one key per regular-file entry, aligned by position with the cpio
// entries they read; cpio stays agnostic of how a caller obtained the MD5
// (typically the header's filemd5s tag, matched up by filename).
type HardlinkKey struct {
	Dev, Inode int64
	MD5        string
}

// ClusterHardlinks groups entry indices that share a HardlinkKey. A key
// with exactly one member is not a cluster and is dropped, matching spec
// ยง4.4's "a key with exactly one member is not a cluster".
func ClusterHardlinks(keys []HardlinkKey) map[HardlinkKey][]int {
	clusters := make(map[HardlinkKey][]int)
	for i, k := range keys {
		clusters[k] = append(clusters[k], i)
	}
	for k, v := range clusters {
		if len(v) < 2 {
			delete(clusters, k)
		}
	}
	return clusters
}

// First returns the canonical "data-carrying" index of a cluster: the
// lowest index, matching the convention that the first occurrence in
// archive order carries the data and later occurrences are realized by
// hardlinking to it.
func First(members []int) int {
	first := members[0]
	for _, i := range members[1:] {
		if i < first {
			first = i
		}
	}
	return first
}

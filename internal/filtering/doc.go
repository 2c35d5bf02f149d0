// Package filtering decides which discovered repositories are kept, using
// include and exclude glob patterns matched against "owner/name".
//
// Exclude patterns take precedence over include patterns. With no include
// patterns every name not excluded is kept. Patterns are case-insensitive
// and '*' matches across the '/' separator, so "acme/*" and "*skills*" both
// behave as expected.
//
//	f, err := filtering.NewNameFilter([]string{"anthropics/*"}, []string{"*-archive"})
//	ok, reason := f.ShouldInclude("anthropics/skills")
package filtering

package helpers

import "fmt"

// SkillFile renders a SKILL.md with the given name, description and
// optional metadata version.
func SkillFile(name, description, version string) string {
	front := fmt.Sprintf("name: %s\ndescription: %s\n", name, description)
	if version != "" {
		front += fmt.Sprintf("metadata:\n  version: %s\n", version)
	}
	return "---\n" + front + "---\n# " + name + "\n"
}

// MarketplaceFiles is a marketplace repository with one plugin carrying a
// command and a nested skill.
func MarketplaceFiles(pluginVersion string) map[string]string {
	return map[string]string{
		".claude-plugin/marketplace.json": `{"name":"acme","plugins":[{"name":"tools","source":"./plugins/tools",` +
			`"description":"Tooling","version":"` + pluginVersion + `"}]}`,
		"plugins/tools/commands/lint.md":       "---\ndescription: Run the linter\n---\nLint.\n",
		"plugins/tools/skills/review/SKILL.md": SkillFile("review", "Review code", ""),
		"plugins/tools/README.md":              "# Tools\n",
	}
}

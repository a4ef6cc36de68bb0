package ignore

// DefaultMaxFileSizeBytes is the size ceiling used when none is configured.
const DefaultMaxFileSizeBytes = 1_000_000

// DefaultExtensions is the extension allow-list used when none is configured.
var DefaultExtensions = []string{
	".md", ".txt", ".py", ".js", ".html", ".json", ".bat", ".ps1", ".css",
}

// DefaultExcludeDirs contains directory names that are never descended into.
// Any directory whose name starts with a dot is skipped as well.
var DefaultExcludeDirs = []string{
	// Version control
	".git",
	".svn",
	".hg",

	// Dependencies
	"node_modules",

	// Python
	"__pycache__",
	".venv",
	"venv",
	"env",
	".tox",
	".mypy_cache",
}

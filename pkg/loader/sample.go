package loader

import "github.com/vanderheijden86/checktree/pkg/model"

// Sample returns the demo tree used by `ct --demo`, a small project layout.
// Nothing is checked or expanded initially.
func Sample() []*model.Node {
	b, l := model.Branch, model.Leaf
	return []*model.Node{
		b("app", "app",
			b("http", "Http",
				b("providers", "Providers",
					l("core", "Core-Providers"),
					l("custom", "Custom-Providers"),
				),
			),
			b("services", "Services",
				l("authentication", "Authentication"),
				l("database", "Database"),
			),
		),
		b("config", "config",
			b("settings", "Settings",
				l("development", "Development-Settings"),
				l("production", "Production-Settings"),
			),
		),
		b("public", "public",
			b("env", ".env",
				l(".env.staging", ".env.staging"),
				l(".env.production", ".env.production"),
			),
			l("gitignore", ".gitignore"),
			b("etc", "etc",
				l("docs", "Documentation"),
				l("assets", "Assets"),
			),
		),
	}
}

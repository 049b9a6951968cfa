package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Collections: []Collection{
			{
				Name:        "book",
				Backend:     "calibre",
				Tag:         "book",
				Description: "Books I keep around for reference.",
			},
			{
				Name:    "papers",
				Backend: "zotero",
				ID:      "ABCD1234",
			},
		},
		Backends: BackendsConfig{
			Calibre: &CalibreConfig{LibraryPath: "~/Calibre Library"},
			Zotero: &ZoteroConfig{
				LibraryID:   "123456",
				LibraryType: "user",
				APIKey:      "${ZOTERO_API_KEY}",
			},
		},
		Storage: StorageConfig{
			GDrive: &GDriveConfig{Credentials: "${GDRIVE_SERVICE_ACCOUNT}"},
		},
		Mail: MailConfig{
			Host:          "smtp.gmail.com",
			Port:          465,
			Username:      "you@gmail.com",
			Password:      "${GMAIL_APP_PASSWORD}",
			Recipients:    []string{"you@example.com"},
			SubjectPrefix: "[Library]",
		},
		Output: OutputConfig{
			Repository: "./site",
			Notice:     "Items are listed for personal reference only.",
			Committer:  Committer{Name: "Library Bot", Email: "bot@example.com"},
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

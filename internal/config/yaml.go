package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// duration marshals as a Go duration string so the output can be fed back
// through viper.
type duration time.Duration

func (d duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ToYAML renders the resolved configuration in .livepen.yml form.
func ToYAML(c *Config) ([]byte, error) {
	type editorView struct {
		MarkupFile    string   `yaml:"markup_file,omitempty"`
		ConfigFile    string   `yaml:"config_file,omitempty"`
		WatchDebounce duration `yaml:"watch_debounce"`
	}
	type previewView struct {
		RepublishDelay duration `yaml:"republish_delay"`
	}
	type compilerView struct {
		Engine        string   `yaml:"engine"`
		Binary        string   `yaml:"binary,omitempty"`
		Minify        bool     `yaml:"minify"`
		Timeout       duration `yaml:"timeout"`
		MaxConcurrent int      `yaml:"max_concurrent"`
		Probe         bool     `yaml:"probe"`
		TempDir       string   `yaml:"temp_dir,omitempty"`
	}
	view := struct {
		Server    ServerConfig    `yaml:"server"`
		Editor    editorView      `yaml:"editor"`
		Preview   previewView     `yaml:"preview"`
		Compiler  compilerView    `yaml:"compiler"`
		Sanitizer SanitizerConfig `yaml:"sanitizer"`
		Log       LogConfig       `yaml:"log"`
	}{
		Server: c.Server,
		Editor: editorView{
			MarkupFile:    c.Editor.MarkupFile,
			ConfigFile:    c.Editor.ConfigFile,
			WatchDebounce: duration(c.Editor.WatchDebounce),
		},
		Preview: previewView{RepublishDelay: duration(c.Preview.RepublishDelay)},
		Compiler: compilerView{
			Engine:        c.Compiler.Engine,
			Binary:        c.Compiler.Binary,
			Minify:        c.Compiler.Minify,
			Timeout:       duration(c.Compiler.Timeout),
			MaxConcurrent: c.Compiler.MaxConcurrent,
			Probe:         c.Compiler.Probe,
			TempDir:       c.Compiler.TempDir,
		},
		Sanitizer: c.Sanitizer,
		Log:       c.Log,
	}

	return yaml.Marshal(view)
}

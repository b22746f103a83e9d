// Package injector configures the loader's DLLInjector.ini so it launches
// Steam with the loader DLL.
package injector

import (
	"os"

	"gopkg.in/ini.v1"

	"github.com/depotkit/depotkit/pkg/errors"
	"github.com/depotkit/depotkit/pkg/logging"
	"github.com/depotkit/depotkit/pkg/paths"
)

const sectionName = "DLLInjector"

// Configure rewrites the Exe, Dll and UseFullPathsFromIni values in the
// loader's DLLInjector.ini, preserving the rest of the file. The file must
// already exist; a missing file means the loader is not installed where
// configured.
func Configure(p *paths.Paths) error {
	logger := logging.GetLogger("injector")
	iniPath := p.InjectorConfigPath()

	if _, err := os.Stat(iniPath); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "DLLInjector.ini not found at %s", iniPath).
			WithDetail("path", iniPath)
	}

	cfg, err := ini.Load(iniPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigFormat, "failed to parse %s", iniPath).
			WithDetail("path", iniPath)
	}

	section := cfg.Section(sectionName)
	section.Key("UseFullPathsFromIni").SetValue("1")
	section.Key("Exe").SetValue(p.SteamExePath())
	section.Key("Dll").SetValue(p.InjectorDLLPath())

	if err := cfg.SaveTo(iniPath); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "failed to write %s", iniPath).
			WithDetail("path", iniPath)
	}

	logger.Info().
		Str("exe", p.SteamExePath()).
		Str("dll", p.InjectorDLLPath()).
		Msg("Configured DLL injector")
	return nil
}

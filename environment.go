package mcpgateway

import (
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// StaticSettings is a Settings implementation backed by fixed values.
type StaticSettings struct {
	WorkDir string
	PathDir string
	EnvVars map[string]string
}

func (s StaticSettings) WorkingDirectory() (string, error) { return s.WorkDir, nil }

func (s StaticSettings) Path() (string, error) { return s.PathDir, nil }

func (s StaticSettings) MCPEnvironmentVariables() (map[string]string, error) {
	return s.EnvVars, nil
}

// launchEnvironment is the resolved environment and working directory of a
// server process.
type launchEnvironment struct {
	env []string
	dir string
}

// resolveLaunchEnvironment merges, in order, the inherited environment, the
// settings PATH prefix, the server env and the settings environment
// overrides.
func resolveLaunchEnvironment(spec ServerSpec, settings Settings, logger zerolog.Logger) launchEnvironment {
	vars := environToMap(os.Environ())

	var (
		workDir  string
		pathDir  string
		override map[string]string
	)
	if settings != nil {
		var err error
		if workDir, err = settings.WorkingDirectory(); err != nil {
			logger.Warn().Err(err).Msg("Failed to read working directory setting")
			workDir = ""
		}
		if pathDir, err = settings.Path(); err != nil {
			logger.Warn().Err(err).Msg("Failed to read path setting")
			pathDir = ""
		}
		if override, err = settings.MCPEnvironmentVariables(); err != nil {
			logger.Warn().Err(err).Msg("Failed to read MCP environment variables setting")
			override = nil
		}
	}

	if strings.TrimSpace(pathDir) != "" {
		key := pathKey(vars)
		if current := vars[key]; current != "" {
			vars[key] = pathDir + string(os.PathListSeparator) + current
		} else {
			vars[key] = pathDir
		}
	}
	for k, v := range spec.Env {
		vars[k] = v
	}
	for k, v := range override {
		vars[k] = v
	}

	result := launchEnvironment{env: mapToEnviron(vars)}
	if workDir != "" {
		if info, err := os.Stat(workDir); err == nil && info.IsDir() {
			result.dir = workDir
		} else {
			logger.Warn().Str("working_directory", workDir).Msg("Configured working directory does not exist, using default")
		}
	}
	return result
}

// pathKey returns the name of the PATH variable as present in vars, which is
// "Path" on some Windows systems.
func pathKey(vars map[string]string) string {
	if _, ok := vars["PATH"]; ok {
		return "PATH"
	}
	for k := range vars {
		if strings.EqualFold(k, "PATH") {
			return k
		}
	}
	return "PATH"
}

func environToMap(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			vars[kv[:i]] = kv[i+1:]
		}
	}
	return vars
}

func mapToEnviron(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}

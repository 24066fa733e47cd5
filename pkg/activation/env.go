package activation

import "os"

// Env is the environment that activation writes the ambient endpoint to.
type Env interface {
	Getenv(key string) string
	Setenv(key, value string) error
	Unsetenv(key string) error
}

// OSEnv is the process environment.
type OSEnv struct{}

func (OSEnv) Getenv(key string) string       { return os.Getenv(key) }
func (OSEnv) Setenv(key, value string) error { return os.Setenv(key, value) }
func (OSEnv) Unsetenv(key string) error      { return os.Unsetenv(key) }

// MapEnv is an in-memory environment for tests.
type MapEnv map[string]string

func (m MapEnv) Getenv(key string) string { return m[key] }

func (m MapEnv) Setenv(key, value string) error {
	m[key] = value
	return nil
}

func (m MapEnv) Unsetenv(key string) error {
	delete(m, key)
	return nil
}

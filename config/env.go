package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment variable sitecheck reads.
const EnvPrefix = "SITECHECK_"

type envSetter func(f *File, v string) error

func setString(dst func(*File) *string) envSetter {
	return func(f *File, v string) error {
		*dst(f) = v
		return nil
	}
}

func setInt(dst func(*File) *int) envSetter {
	return func(f *File, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(f) = n
		return nil
	}
}

func setBool(dst func(*File) *bool) envSetter {
	return func(f *File, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(f) = b
		return nil
	}
}

func setList(dst func(*File) *[]string) envSetter {
	return func(f *File, v string) error {
		*dst(f) = splitList(v)
		return nil
	}
}

// envVars maps variable names (without the prefix) to the field they set.
var envVars = map[string]envSetter{
	"BASE_URL":          setString(func(f *File) *string { return &f.BaseURL }),
	"ENGINE":            setString(func(f *File) *string { return &f.Engine }),
	"OUTPUT":            setString(func(f *File) *string { return &f.Output }),
	"FORMAT":            setString(func(f *File) *string { return &f.Format }),
	"EXTRACTOR":         setString(func(f *File) *string { return &f.Extractor }),
	"USER_AGENT":        setString(func(f *File) *string { return &f.UserAgent }),
	"MAX_CONCURRENT":    setInt(func(f *File) *int { return &f.MaxConcurrent }),
	"TIMEOUT":           setInt(func(f *File) *int { return &f.Timeout }),
	"DISCOVERY_TIMEOUT": setInt(func(f *File) *int { return &f.DiscoveryTimeout }),
	"RATE_LIMIT":        setInt(func(f *File) *int { return &f.RateLimit }),
	"RETRIES":           setInt(func(f *File) *int { return &f.Retries }),
	"BATCH_SIZE":        setInt(func(f *File) *int { return &f.BatchSize }),
	"RESPECT_ROBOTS":    setBool(func(f *File) *bool { return &f.RespectRobots }),
	"SITEMAP":           setBool(func(f *File) *bool { return &f.Sitemap }),
	"FAIL_ON_BROKEN":    setBool(func(f *File) *bool { return &f.FailOnBroken }),
	"EXCLUDE_EXT":       setList(func(f *File) *[]string { return &f.ExcludeExt }),
}

// ApplyEnv overlays SITECHECK_* values onto f. Values from the dotenv file
// at dotenvPath (skipped when missing) are read first; lookup, usually
// os.LookupEnv, wins over them. The process environment is not modified.
func ApplyEnv(f File, dotenvPath string, lookup func(string) (string, bool)) (File, error) {
	values := map[string]string{}
	if dotenvPath != "" {
		fromFile, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			values = fromFile
		case !errors.Is(err, os.ErrNotExist):
			return f, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
	}

	for name, set := range envVars {
		key := EnvPrefix + name
		v, ok := values[key]
		if lv, found := lookup(key); found {
			v, ok = lv, true
		}
		if !ok {
			continue
		}
		if err := set(&f, v); err != nil {
			return f, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, v)
		}
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package app

import (
    "errors"
    "os"
    "strings"

    "github.com/joho/godotenv"
)

// LoadEnvFiles loads dotenv files into the process environment. Later files
// override earlier ones and the existing environment; missing files are
// skipped.
func LoadEnvFiles(paths ...string) error {
    existing := make([]string, 0, len(paths))
    for _, p := range paths {
        if strings.TrimSpace(p) == "" {
            continue
        }
        if _, err := os.Stat(p); err != nil {
            if errors.Is(err, os.ErrNotExist) {
                continue
            }
            return err
        }
        existing = append(existing, p)
    }
    if len(existing) == 0 {
        return nil
    }
    return godotenv.Overload(existing...)
}

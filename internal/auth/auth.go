// Package auth resolves scorer API keys from the environment or a
// GPG-encrypted credentials file.
package auth

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".mediacull"
	credentialFile = "credentials.gpg"
)

// APIKey retrieves the key named by envVar (for example GEMINI_API_KEY or
// OPENAI_API_KEY). Priority order:
//  1. the environment variable itself
//  2. the GPG-encrypted file at ~/.mediacull/credentials.gpg, which holds
//     either NAME=value lines or a single bare key
func APIKey(envVar string) (string, error) {
	if key := os.Getenv(envVar); key != "" {
		log.Debug().Str("var", envVar).Msg("Using API key from environment variable")
		return key, nil
	}

	content, err := decryptCredentials()
	if err == nil {
		if key := pickKey(content, envVar); key != "" {
			log.Debug().Str("var", envVar).Msg("Using API key from GPG encrypted file")
			return key, nil
		}
		err = fmt.Errorf("credentials file holds no entry for %s", envVar)
	}

	log.Error().Err(err).Str("var", envVar).Msg("Failed to retrieve API key")
	return "", fmt.Errorf("API key not found: set %s or store it in ~/%s/%s", envVar, credentialDir, credentialFile)
}

// pickKey extracts the entry for envVar from decrypted credential content.
// A file holding a single bare token serves any requested name.
func pickKey(content, envVar string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found {
			if len(lines) == 1 {
				return line
			}
			continue
		}
		if strings.TrimSpace(name) == envVar {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// decryptCredentials decrypts the credentials file with gpg.
func decryptCredentials() (string, error) {
	credPath, err := credentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	// Optional passphrase file enables non-interactive decryption; it must
	// be owner-only or it is ignored.
	args := []string{"--decrypt", "--quiet"}
	if passPath, err := passphrasePath(); err == nil {
		if fi, statErr := os.Stat(passPath); statErr == nil {
			if fi.Mode().Perm()&0o077 != 0 {
				log.Warn().
					Str("passphrase_file", passPath).
					Str("permissions", fmt.Sprintf("%04o", fi.Mode().Perm())).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passPath)
			}
		}
	}

	args = append(args, credPath)
	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return string(output), nil
}

func credentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphrasePath looks for .gpg-passphrase next to the executable, then in
// the working directory.
func passphrasePath() (string, error) {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), ".gpg-passphrase")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, ".gpg-passphrase"), nil
}

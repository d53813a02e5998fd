package key

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads the JWK set document from path.
func FileSource(path string) Source {
	return func(context.Context) ([]byte, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key set file: %w", err)
		}
		return b, nil
	}
}

// StaticSource always returns document.
func StaticSource(document []byte) Source {
	return func(context.Context) ([]byte, error) {
		return document, nil
	}
}

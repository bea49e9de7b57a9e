package repository

import (
	"context"
	"fmt"

	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
)

// ResolveCategories looks up the webcam and video categories once so the rest of
// the process works with kinds instead of names. With seed set, missing rows are created.
func ResolveCategories(ctx context.Context, repo CategoryRepository, webcamName, videoName string, seed bool) (model.Categories, error) {
	lookup := repo.GetByName
	if seed {
		lookup = repo.Ensure
	}

	webcam, err := lookup(ctx, webcamName)
	if err != nil {
		return model.Categories{}, fmt.Errorf("resolve category %q: %w", webcamName, err)
	}
	video, err := lookup(ctx, videoName)
	if err != nil {
		return model.Categories{}, fmt.Errorf("resolve category %q: %w", videoName, err)
	}
	if webcam.ID == video.ID {
		return model.Categories{}, fmt.Errorf("categories %q and %q resolve to the same row", webcamName, videoName)
	}

	return model.NewCategories(*webcam, *video), nil
}

package scoring

import "github.com/omegavid/validator/internal/domain"

// FilterByDuration keeps items whose clip length lies within the allowed
// bounds, preserving submission order.
func FilterByDuration(items []domain.VideoMetadata) []domain.VideoMetadata {
	out := make([]domain.VideoMetadata, 0, len(items))
	for _, item := range items {
		d := item.Duration()
		if d >= domain.MinVideoLength && d <= domain.MaxVideoLength {
			out = append(out, item)
		}
	}
	return out
}

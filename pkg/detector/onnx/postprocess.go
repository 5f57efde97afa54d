package onnx

import (
	"sort"

	"github.com/Sei0217/visually-impaired/internal/entity"
	"github.com/Sei0217/visually-impaired/pkg/detector"
)

const DefaultIOUThreshold = 0.45

type candidate struct {
	box   [4]float64
	class int
	score float64
}

// decode reads a YOLOv8 head laid out as [4+nc, anchors]: cx, cy, w, h rows
// followed by one score row per class. Only the best class per anchor is kept.
func decode(out []float32, numClasses, anchors int, lb letterbox, opts detector.Options) []candidate {
	var cands []candidate
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			s := out[(4+c)*anchors+a]
			if s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < opts.Confidence || !opts.AllowsClass(best) {
			continue
		}

		cx := float64(out[a])
		cy := float64(out[anchors+a])
		w := float64(out[2*anchors+a])
		h := float64(out[3*anchors+a])
		box := lb.toSource(cx-w/2, cy-h/2, cx+w/2, cy+h/2)
		if box[2] <= box[0] || box[3] <= box[1] {
			continue
		}

		cands = append(cands, candidate{box: box, class: best, score: float64(bestScore)})
	}
	return cands
}

func iou(a, b [4]float64) float64 {
	ix1, iy1 := max(a[0], b[0]), max(a[1], b[1])
	ix2, iy2 := min(a[2], b[2]), min(a[3], b[3])
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// nms suppresses overlapping boxes of the same class, keeping at most limit
// results ordered by descending score. limit <= 0 means no limit.
func nms(cands []candidate, threshold float64, limit int) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	kept := make([]candidate, 0, min(len(cands), max(limit, 0)))
	suppressed := make([]bool, len(cands))
	for i := range cands {
		if suppressed[i] {
			continue
		}
		kept = append(kept, cands[i])
		if limit > 0 && len(kept) == limit {
			break
		}
		for j := i + 1; j < len(cands); j++ {
			if !suppressed[j] && cands[j].class == cands[i].class && iou(cands[i].box, cands[j].box) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func toRaw(cands []candidate) []entity.RawDetection {
	raw := make([]entity.RawDetection, len(cands))
	for i, c := range cands {
		raw[i] = entity.RawDetection{Box: c.box, ClassIndex: c.class, Score: c.score}
	}
	return raw
}

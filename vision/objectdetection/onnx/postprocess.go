package onnx

import (
	"image"
	"sort"

	"go.viam.com/gatekeeper/vision/objectdetection"
)

// numAnchors is the number of YOLOv8 predictions for a square input: one per cell of the
// stride 8, 16 and 32 grids.
func numAnchors(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		cells := size / stride
		n += cells * cells
	}
	return n
}

// decode reads a (1, 4+numClasses, n) channel-major YOLOv8 output. Each anchor contributes at
// most its best class, and only when that score reaches minScore.
func decode(output []float32, numClasses, n int, lb letterbox, minScore float64, labels objectdetection.Labels) []objectdetection.Detection {
	dets := []objectdetection.Detection{}
	for i := 0; i < n; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if score := output[(4+c)*n+i]; score > bestScore {
				bestClass, bestScore = c, score
			}
		}
		if bestClass < 0 || float64(bestScore) < minScore {
			continue
		}
		box := lb.toSource(
			float64(output[i]),
			float64(output[n+i]),
			float64(output[2*n+i]),
			float64(output[3*n+i]),
		)
		if box.Empty() {
			continue
		}
		dets = append(dets, objectdetection.NewDetection(box, clampScore(bestScore), bestClass, labels.Name(bestClass)))
	}
	return dets
}

func clampScore(s float32) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return float64(s)
	}
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// nms performs class-aware non-maximum suppression, returning survivors by descending score.
func nms(dets []objectdetection.Detection, threshold float64) []objectdetection.Detection {
	sorted := append([]objectdetection.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	kept := make([]objectdetection.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && iou(k.BoundingBox, d.BoundingBox) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

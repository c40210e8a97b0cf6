package face

// SelectLargest picks the face with the strictly largest bounding-box area,
// the most prominent subject in frame. Ties keep the first face in engine
// output order; an empty input reports no selection.
func SelectLargest(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	bestArea := best.Box.Area()
	for _, f := range faces[1:] {
		if area := f.Box.Area(); area > bestArea {
			best = f
			bestArea = area
		}
	}
	return best, true
}

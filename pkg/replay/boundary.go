package replay

// BoundaryIndices returns the 0-based index of the last commit of every stride
// for a sequence of the given length. The final stride is clamped to length-1.
//
// For length 120 and stride 50 the result is [49 99 119].
func BoundaryIndices(length, stride int) []int {
	if length <= 0 || stride <= 0 {
		return nil
	}

	indices := make([]int, 0, (length+stride-1)/stride)

	for cursor := 0; cursor < length; cursor += stride {
		indices = append(indices, min(cursor+stride, length)-1)
	}

	return indices
}

package reduce

// KahanSum returns the compensated sum of values. The running sum is seeded
// with values[0]; each following element is added with the rounding error of
// the previous additions carried in a separate term.
func KahanSum[F ~float32 | ~float64](values []F) (F, error) {
	if len(values) == 0 {
		return 0, emptyInput()
	}
	sum := values[0]
	var c F
	for _, v := range values[1:] {
		y := v - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum, nil
}

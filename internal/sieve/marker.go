package sieve

// MarkShared scans seg and, for every index still marked prime, strikes all
// of its multiples from its square up to the end of the buffer.
//
// Several MarkShared calls may run at once on one buffer and strike the same
// slots. That is safe because Strike only clears bits. Reading a candidate
// that another worker has not struck yet only causes redundant strikes of
// multiples that are composite anyway. It returns the number of candidates
// whose multiples were struck.
func MarkShared(buf *Buffer, seg Segment) int {
	buf.mustBeMarking()

	limit := buf.Limit()
	propagated := 0
	for i := max(seg.Start, 2); i < seg.End; i++ {
		if i > limit/i {
			break
		}
		if !buf.IsPrime(i) {
			continue
		}
		propagated++
		for j := i * i; j < limit; j += i {
			buf.Strike(j)
		}
	}
	return propagated
}

// MarkOwned scans candidates and strikes multiples only inside window, the
// range the caller owns exclusively for writing. The first strike for a
// candidate p is the larger of p*p and the first multiple of p >= window.Start.
func MarkOwned(buf *Buffer, candidates, window Segment) int {
	buf.mustBeMarking()

	end := min(window.End, buf.Limit())
	propagated := 0
	for p := max(candidates.Start, 2); p < candidates.End; p++ {
		if p > (end-1)/p {
			break
		}
		if !buf.IsPrime(p) {
			continue
		}
		propagated++
		for j := FirstMultiple(p, window.Start); j < end; j += p {
			buf.Strike(j)
		}
	}
	return propagated
}

// FirstMultiple returns the smallest multiple of p that is >= lo and >= p*p.
func FirstMultiple(p, lo int) int {
	first := ((lo + p - 1) / p) * p
	if sq := p * p; first < sq {
		first = sq
	}
	return first
}

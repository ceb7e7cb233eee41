package marketdata

// Batch is the outcome of one mapping pass.
type Batch struct {
	Kind    DocumentKind
	Shape   Shape
	Records []Record
}

// Empty reports whether the batch holds no records.
func (b Batch) Empty() bool { return len(b.Records) == 0 }

// Map runs parse, normalize and assemble over one document. A document without points
// returns its empty batch together with ErrEmptyResult.
func Map(raw []byte, kind DocumentKind, zc ZoneContext) (Batch, error) {
	shape, err := Route(kind)
	if err != nil {
		return Batch{}, err
	}
	if err := zc.Validate(); err != nil {
		return Batch{}, err
	}
	batch := Batch{Kind: kind, Shape: shape}

	entries, err := Parse(raw, kind)
	if err != nil {
		return batch, err
	}
	if len(entries) == 0 {
		return batch, ErrEmptyResult
	}

	batch.Records = make([]Record, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for _, entry := range entries {
		rec, err := assemble(kind, entry, zc)
		if err != nil {
			return Batch{Kind: kind, Shape: shape}, err
		}
		// Series with identical codes may repeat an interval; each repeat is its own row.
		if n := seen[rec.Key()]; n > 0 {
			seen[rec.Key()] = n + 1
			rec = rekey(rec, n)
		} else {
			seen[rec.Key()] = 1
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func assemble(kind DocumentKind, entry Entry, zc ZoneContext) (Record, error) {
	switch kind {
	case KindBalancingReserve:
		return AssembleBalancingReserve(entry, zc)
	case KindDayAheadPrice:
		return AssembleDayAheadPrice(entry, zc)
	default:
		return nil, ErrUnknownDocumentKind
	}
}

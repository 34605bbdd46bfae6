package snapshot

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rezolus/rezolus/pkg/metric"
)

// wireSnapshot is the self-describing binary format spec.md §6 defines: a
// top-level map with "timestamp", "duration_ns", and "metrics", where each
// metric is a 4-element positional array `[name, labels, kind, value]` so a
// reader needs no external schema beyond the kind tag to pick the value's
// shape.
type wireSnapshot struct {
	Timestamp  int64     `msgpack:"timestamp"`
	DurationNs int64     `msgpack:"duration_ns"`
	Metrics    []wireRow `msgpack:"metrics"`
}

// wireRow is Row with its own msgpack encoding: a 4-element array rather
// than a field-tagged map, matching spec.md §6's literal "[name, labels,
// kind, value]" schema.
type wireRow Row

// EncodeMsgpack implements msgpack.CustomEncoder.
func (r wireRow) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(4); err != nil {
		return err
	}
	if err := enc.EncodeString(r.Name); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(len(r.Labels)); err != nil {
		return err
	}
	for k, v := range r.Labels {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.EncodeString(v); err != nil {
			return err
		}
	}
	if err := enc.EncodeString(r.Kind.String()); err != nil {
		return err
	}
	switch r.Kind {
	case metric.KindCounter:
		return enc.EncodeUint64(r.Counter)
	case metric.KindGauge:
		return enc.EncodeInt64(r.Gauge)
	case metric.KindHistogram:
		if err := enc.EncodeMapLen(3); err != nil {
			return err
		}
		if err := enc.EncodeString("g"); err != nil {
			return err
		}
		if err := enc.EncodeUint64(uint64(r.G)); err != nil {
			return err
		}
		if err := enc.EncodeString("m"); err != nil {
			return err
		}
		if err := enc.EncodeUint64(uint64(r.M)); err != nil {
			return err
		}
		if err := enc.EncodeString("buckets"); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(r.Buckets)); err != nil {
			return err
		}
		for _, b := range r.Buckets {
			if err := enc.EncodeUint64(b); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("snapshot: encode: unknown kind %v", r.Kind)
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (r *wireRow) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 4 {
		return fmt.Errorf("snapshot: expected 4-element metric array, got %d", n)
	}

	name, err := dec.DecodeString()
	if err != nil {
		return err
	}

	labelLen, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	var labels map[string]string
	if labelLen > 0 {
		labels = make(map[string]string, labelLen)
	}
	for i := 0; i < labelLen; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v, err := dec.DecodeString()
		if err != nil {
			return err
		}
		labels[k] = v
	}

	kindStr, err := dec.DecodeString()
	if err != nil {
		return err
	}
	kind, err := kindFromString(kindStr)
	if err != nil {
		return err
	}

	row := Row{Name: name, Labels: labels, Kind: kind}
	row.Reading.Kind = kind

	switch kind {
	case metric.KindCounter:
		v, err := dec.DecodeUint64()
		if err != nil {
			return err
		}
		row.Counter = v
	case metric.KindGauge:
		v, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		row.Gauge = v
	case metric.KindHistogram:
		mapLen, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		for i := 0; i < mapLen; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return err
			}
			switch key {
			case "g":
				g, err := dec.DecodeUint64()
				if err != nil {
					return err
				}
				row.G = uint8(g)
			case "m":
				m, err := dec.DecodeUint64()
				if err != nil {
					return err
				}
				row.M = uint8(m)
			case "buckets":
				bn, err := dec.DecodeArrayLen()
				if err != nil {
					return err
				}
				buckets := make([]uint64, bn)
				for j := 0; j < bn; j++ {
					b, err := dec.DecodeUint64()
					if err != nil {
						return err
					}
					buckets[j] = b
				}
				row.Buckets = buckets
			default:
				if _, err := dec.DecodeInterface(); err != nil {
					return err
				}
			}
		}
	}

	*r = wireRow(row)
	return nil
}

// Encode serialises snap into the binary exposition format.
func Encode(snap Snapshot) ([]byte, error) {
	wire := wireSnapshot{
		Timestamp:  snap.TakenAt.UnixNano(),
		DurationNs: snap.SamplingDuration.Nanoseconds(),
		Metrics:    make([]wireRow, len(snap.Rows)),
	}
	for i, row := range snap.Rows {
		wire.Metrics[i] = wireRow(row)
	}
	return msgpack.Marshal(wire)
}

// Decode reverses Encode. Kind is carried as its string form on the wire so
// a decoder in another language needs no shared enum.
func Decode(data []byte) (Snapshot, error) {
	var wire wireSnapshot
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		TakenAt:          time.Unix(0, wire.Timestamp).UTC(),
		SamplingDuration: time.Duration(wire.DurationNs),
		Rows:             make([]Row, len(wire.Metrics)),
	}
	for i, m := range wire.Metrics {
		snap.Rows[i] = Row(m)
	}
	return snap, nil
}

func kindFromString(s string) (Kind, error) {
	switch s {
	case "counter":
		return metric.KindCounter, nil
	case "gauge":
		return metric.KindGauge, nil
	case "histogram":
		return metric.KindHistogram, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown wire kind %q", s)
	}
}

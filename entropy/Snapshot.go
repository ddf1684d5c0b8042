/*
Copyright 2011-2017 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package entropy

import (
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	pqs "github.com/flanglet/pqs-go"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Snapshot layout:
//   "pQSM" | version (1 byte) | memory selector (1 byte) |
//   zstd frame of (predictor state | xxhash64 of the state, little endian)

const (
	SNAPSHOT_MAGIC   = "pQSM"
	SNAPSHOT_VERSION = 1
)

var _SNAPSHOT_ORDER = binary.LittleEndian

// Fixed size part of the predictor state
type snapshotScalars struct {
	Pr      int32
	C0      uint32
	C4      uint32
	Bcount  uint32
	H       [LPAQ_NB_CONTEXTS]uint32
	Cp      [LPAQ_NB_CONTEXTS]int32
	SmCxt   [LPAQ_NB_CONTEXTS]int32
	A1Cxt   int32
	A2Cxt   int32
	MixNx   int32
	MixCxt  int32
	MixPr   int32
	MixPh   int32
	MmPos   int32
	MmPtr   int32
	MmLen   int32
	MmH1    uint32
	MmH2    uint32
	MmC0    int32
	MmBc    uint32
	MmSmCxt int32
}

func (this *LPAQPredictor) scalars() *snapshotScalars {
	s := &snapshotScalars{
		Pr:      int32(this.pr),
		C0:      this.c0,
		C4:      this.c4,
		Bcount:  uint32(this.bcount),
		H:       this.h,
		A1Cxt:   int32(this.a1.cxt),
		A2Cxt:   int32(this.a2.cxt),
		MixNx:   int32(this.mixer.nx),
		MixCxt:  int32(this.mixer.cxt),
		MixPr:   int32(this.mixer.pr),
		MixPh:   int32(this.mixer.phase),
		MmPos:   int32(this.mm.pos),
		MmPtr:   int32(this.mm.ptr),
		MmLen:   int32(this.mm.length),
		MmH1:    this.mm.h1,
		MmH2:    this.mm.h2,
		MmC0:    int32(this.mm.c0),
		MmBc:    uint32(this.mm.bcount),
		MmSmCxt: int32(this.mm.sm.cxt),
	}

	for i := range this.cp {
		s.Cp[i] = int32(this.cp[i])
		s.SmCxt[i] = int32(this.sm[i].cxt)
	}

	return s
}

func (this *LPAQPredictor) restoreScalars(s *snapshotScalars) error {
	inRange := func(v int32, n int) bool { return v >= 0 && int(v) < n }

	if !inRange(s.Cp[0], len(this.t0)) || !inRange(s.MixCxt, this.mixer.m) ||
		!inRange(s.MixNx, this.mixer.n+1) || !inRange(s.MixPr, 4096) || !inRange(s.Pr, 4096) ||
		!inRange(s.A1Cxt, len(this.a1.t)) || !inRange(s.A2Cxt, len(this.a2.t)) ||
		!inRange(s.MmPos, len(this.mm.buf)) || !inRange(s.MmPtr, len(this.mm.buf)) ||
		!inRange(s.MmLen, MATCH_MAX_LENGTH+1) || !inRange(s.MmSmCxt, len(this.mm.sm.t)) ||
		s.MmBc > 7 || s.Bcount > 7 || s.MixPh > _MIXER_PREDICTED || s.MixPh < _MIXER_ADDING {
		return errors.New("invalid predictor state in snapshot")
	}

	// Partial bytes carry a leading 1 above bcount bits
	if s.C0 == 0 || s.C0 > 0xFF || s.C0>>s.Bcount != 1 ||
		s.MmC0 <= 0 || s.MmC0 > 0xFF || s.MmC0>>s.MmBc != 1 {
		return errors.New("invalid partial byte in snapshot")
	}

	if s.H[0] > 0xFF00 || s.H[0]&0xFF != 0 {
		return errors.New("invalid order 1 context in snapshot")
	}

	for i := range this.cp {
		if i > 0 && !inRange(s.Cp[i], len(this.table.t)) {
			return errors.New("invalid bit history offset in snapshot")
		}

		if !inRange(s.SmCxt[i], len(this.sm[i].t)) {
			return errors.New("invalid state map context in snapshot")
		}

		this.cp[i] = int(s.Cp[i])
		this.sm[i].cxt = int(s.SmCxt[i])
	}

	this.pr = int(s.Pr)
	this.c0 = s.C0
	this.c4 = s.C4
	this.bcount = uint(s.Bcount)
	this.h = s.H
	this.a1.cxt = int(s.A1Cxt)
	this.a2.cxt = int(s.A2Cxt)
	this.mixer.nx = int(s.MixNx)
	this.mixer.cxt = int(s.MixCxt)
	this.mixer.pr = int(s.MixPr)
	this.mixer.phase = int(s.MixPh)
	this.mm.pos = int(s.MmPos)
	this.mm.ptr = int(s.MmPtr)
	this.mm.length = int(s.MmLen)
	this.mm.h1 = s.MmH1 & this.mm.htMsk
	this.mm.h2 = s.MmH2 & this.mm.htMsk
	this.mm.c0 = int(s.MmC0)
	this.mm.bcount = uint(s.MmBc)
	this.mm.sm.cxt = int(s.MmSmCxt)
	return nil
}

// Variable size part of the predictor state, in serialization order
func (this *LPAQPredictor) tables() []any {
	res := []any{this.t0, this.table.t}

	for i := range this.sm {
		res = append(res, this.sm[i].t)
	}

	return append(res, this.a1.t, this.a2.t, this.mixer.tx, this.mixer.wx,
		this.mm.buf, this.mm.ht, this.mm.sm.t)
}

// SaveSnapshot writes the full state of the predictor to w
func SaveSnapshot(w io.Writer, p *LPAQPredictor) error {
	hdr := []byte{SNAPSHOT_MAGIC[0], SNAPSHOT_MAGIC[1], SNAPSHOT_MAGIC[2], SNAPSHOT_MAGIC[3],
		SNAPSHOT_VERSION, byte(p.selector)}

	if _, err := w.Write(hdr); err != nil {
		return errors.Wrap(err, "cannot write snapshot header")
	}

	enc, err := zstd.NewWriter(w)

	if err != nil {
		return errors.Wrap(err, "cannot create snapshot encoder")
	}

	digest := xxhash.New()
	out := io.MultiWriter(enc, digest)

	if err = binary.Write(out, _SNAPSHOT_ORDER, p.scalars()); err != nil {
		enc.Close()
		return errors.Wrap(err, "cannot write snapshot")
	}

	for _, t := range p.tables() {
		if b, ok := t.([]byte); ok {
			_, err = out.Write(b)
		} else {
			err = binary.Write(out, _SNAPSHOT_ORDER, t)
		}

		if err != nil {
			enc.Close()
			return errors.Wrap(err, "cannot write snapshot")
		}
	}

	if err = binary.Write(enc, _SNAPSHOT_ORDER, digest.Sum64()); err != nil {
		enc.Close()
		return errors.Wrap(err, "cannot write snapshot checksum")
	}

	return errors.Wrap(enc.Close(), "cannot write snapshot")
}

// LoadPredictor restores a predictor saved with SaveSnapshot
func LoadPredictor(r io.Reader) (*LPAQPredictor, error) {
	hdr := make([]byte, 6)

	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, errors.Wrap(err, "cannot read snapshot header")
	}

	if string(hdr[0:4]) != SNAPSHOT_MAGIC {
		return nil, errors.New("invalid snapshot: bad magic")
	}

	if hdr[4] != SNAPSHOT_VERSION {
		return nil, errors.Errorf("invalid snapshot: unsupported version %d", hdr[4])
	}

	if hdr[5] > pqs.MAX_MEMORY_SELECTOR {
		return nil, errors.Errorf("invalid snapshot: memory selector %d", hdr[5])
	}

	p, err := NewLPAQPredictor(uint(hdr[5]))

	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(r)

	if err != nil {
		return nil, errors.Wrap(err, "cannot create snapshot decoder")
	}

	defer dec.Close()
	digest := xxhash.New()
	in := io.TeeReader(dec, digest)
	s := &snapshotScalars{}

	if err = binary.Read(in, _SNAPSHOT_ORDER, s); err != nil {
		return nil, errors.Wrap(err, "cannot read snapshot")
	}

	for _, t := range p.tables() {
		if b, ok := t.([]byte); ok {
			_, err = io.ReadFull(in, b)
		} else {
			err = binary.Read(in, _SNAPSHOT_ORDER, t)
		}

		if err != nil {
			return nil, errors.Wrap(err, "cannot read snapshot")
		}
	}

	var checksum uint64

	if err = binary.Read(dec, _SNAPSHOT_ORDER, &checksum); err != nil {
		return nil, errors.Wrap(err, "cannot read snapshot checksum")
	}

	if checksum != digest.Sum64() {
		return nil, errors.New("invalid snapshot: checksum mismatch")
	}

	if err = p.restoreScalars(s); err != nil {
		return nil, err
	}

	return p, nil
}

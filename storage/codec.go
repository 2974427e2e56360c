package storage

import (
	"encoding/binary"

	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// Fixed-size little-endian record encodings for the engine's bookkeeping
// tables (§6 On-disk layout: "bit-stable... little-endian; fixed-size
// records use C-layout, zero-padded"). Parsing of block/tx wire bytes
// themselves is out of scope (§4.3 Block/tx wire format) and handled by the
// external serializer the caller already ran before handing a
// VerifiedBlockInformation to WriteBlock.

// blockInfoSize matches §4.3's "BlockInfo (88 B)" entry: 8 (timestamp) +
// 8 (cumulative generated) + 8 (weight) + 16 (cumulative difficulty,
// Uint128) + 32 (hash) + 8 (cumulative rct outputs) + 8 (long term weight).
const blockInfoSize = 8 + 8 + 8 + 16 + 32 + 8 + 8

func encodeBlockInfo(b *ctypes.BlockInfo) []byte {
	buf := make([]byte, blockInfoSize)
	binary.LittleEndian.PutUint64(buf[0:8], b.Timestamp)
	binary.LittleEndian.PutUint64(buf[8:16], b.CumulativeGenerated)
	binary.LittleEndian.PutUint64(buf[16:24], b.BlockWeight)
	binary.LittleEndian.PutUint64(buf[24:32], b.CumulativeDifficulty.Lo)
	binary.LittleEndian.PutUint64(buf[32:40], b.CumulativeDifficulty.Hi)
	copy(buf[40:72], b.BlockHash[:])
	binary.LittleEndian.PutUint64(buf[72:80], b.CumulativeRctOutputs)
	binary.LittleEndian.PutUint64(buf[80:88], b.LongTermWeight)
	return buf
}

func decodeBlockInfo(buf []byte) *ctypes.BlockInfo {
	b := &ctypes.BlockInfo{}
	b.Timestamp = binary.LittleEndian.Uint64(buf[0:8])
	b.CumulativeGenerated = binary.LittleEndian.Uint64(buf[8:16])
	b.BlockWeight = binary.LittleEndian.Uint64(buf[16:24])
	b.CumulativeDifficulty.Lo = binary.LittleEndian.Uint64(buf[24:32])
	b.CumulativeDifficulty.Hi = binary.LittleEndian.Uint64(buf[32:40])
	copy(b.BlockHash[:], buf[40:72])
	b.CumulativeRctOutputs = binary.LittleEndian.Uint64(buf[72:80])
	b.LongTermWeight = binary.LittleEndian.Uint64(buf[80:88])
	return b
}

func encodeTxInfo(t *ctypes.TxInfo) []byte {
	buf := make([]byte, 8*6)
	binary.LittleEndian.PutUint64(buf[0:8], t.Height)
	binary.LittleEndian.PutUint64(buf[8:16], t.PrunedOffset)
	binary.LittleEndian.PutUint64(buf[16:24], t.PrunedSize)
	binary.LittleEndian.PutUint64(buf[24:32], t.PrunableOffset)
	binary.LittleEndian.PutUint64(buf[32:40], t.PrunableSize)
	binary.LittleEndian.PutUint64(buf[40:48], t.RctOutputStartIndex)
	return append(buf, encodeUint64(t.NumRctOutputs)...)
}

func decodeTxInfo(buf []byte) *ctypes.TxInfo {
	t := &ctypes.TxInfo{}
	t.Height = binary.LittleEndian.Uint64(buf[0:8])
	t.PrunedOffset = binary.LittleEndian.Uint64(buf[8:16])
	t.PrunedSize = binary.LittleEndian.Uint64(buf[16:24])
	t.PrunableOffset = binary.LittleEndian.Uint64(buf[24:32])
	t.PrunableSize = binary.LittleEndian.Uint64(buf[32:40])
	t.RctOutputStartIndex = binary.LittleEndian.Uint64(buf[40:48])
	t.NumRctOutputs = binary.LittleEndian.Uint64(buf[48:56])
	return t
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func encodePreRCTOutput(o *ctypes.PreRCTOutput) []byte {
	buf := make([]byte, 32+8+1+8+32+1)
	copy(buf[0:32], o.PublicKey[:])
	binary.LittleEndian.PutUint64(buf[32:40], o.Height)
	buf[40] = uint8(o.Timelock.Kind)
	binary.LittleEndian.PutUint64(buf[41:49], o.Timelock.Value)
	copy(buf[49:81], o.TxId[:])
	buf[81] = uint8(o.Flags)
	return buf
}

func decodePreRCTOutput(buf []byte) *ctypes.PreRCTOutput {
	o := &ctypes.PreRCTOutput{}
	copy(o.PublicKey[:], buf[0:32])
	o.Height = binary.LittleEndian.Uint64(buf[32:40])
	o.Timelock.Kind = ctypes.TimeLockKind(buf[40])
	o.Timelock.Value = binary.LittleEndian.Uint64(buf[41:49])
	copy(o.TxId[:], buf[49:81])
	o.Flags = ctypes.OutputFlags(buf[81])
	return o
}

func encodeRctOutput(o *ctypes.RctOutput) []byte {
	buf := make([]byte, 32+32+8+1+8+32)
	copy(buf[0:32], o.PublicKey[:])
	copy(buf[32:64], o.Commitment[:])
	binary.LittleEndian.PutUint64(buf[64:72], o.Height)
	buf[72] = uint8(o.Timelock.Kind)
	binary.LittleEndian.PutUint64(buf[73:81], o.Timelock.Value)
	copy(buf[81:113], o.TxId[:])
	return buf
}

func decodeRctOutput(buf []byte) *ctypes.RctOutput {
	o := &ctypes.RctOutput{}
	copy(o.PublicKey[:], buf[0:32])
	copy(o.Commitment[:], buf[32:64])
	o.Height = binary.LittleEndian.Uint64(buf[64:72])
	o.Timelock.Kind = ctypes.TimeLockKind(buf[72])
	o.Timelock.Value = binary.LittleEndian.Uint64(buf[73:81])
	copy(o.TxId[:], buf[81:113])
	return o
}

// encodeBlockHeader/decodeBlockHeader/encodeTransaction/decodeTransaction/
// encodeHashList/decodeHashList give WriteBlock and Block(height) a
// deterministic internal round trip (serialize(parse(x)) == x) over the
// already-parsed structures this core works with; the real Monero wire
// format is produced/consumed by the external serializer boundary (§4.3
// Block/tx wire format) the engine never touches directly.

const blockHeaderSize = 1 + 1 + 8 + 4 + 32

func encodeBlockHeader(h ctypes.BlockHeader) []byte {
	buf := make([]byte, blockHeaderSize)
	buf[0] = h.MajorVersion
	buf[1] = h.MinorVersion
	binary.LittleEndian.PutUint64(buf[2:10], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[10:14], h.Nonce)
	copy(buf[14:46], h.Previous[:])
	return buf
}

func decodeBlockHeader(buf []byte) ctypes.BlockHeader {
	var h ctypes.BlockHeader
	h.MajorVersion = buf[0]
	h.MinorVersion = buf[1]
	h.Timestamp = binary.LittleEndian.Uint64(buf[2:10])
	h.Nonce = binary.LittleEndian.Uint32(buf[10:14])
	copy(h.Previous[:], buf[14:46])
	return h
}

func putBytes(dst *[]byte, b []byte) {
	*dst = append(*dst, encodeUint64(uint64(len(b)))...)
	*dst = append(*dst, b...)
}

func takeBytes(buf []byte, off int) ([]byte, int) {
	n := int(decodeUint64(buf[off : off+8]))
	off += 8
	return buf[off : off+n], off + n
}

func encodeHashList(hashes []ctypes.Hash) []byte {
	var buf []byte
	buf = append(buf, encodeUint64(uint64(len(hashes)))...)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func decodeHashList(buf []byte) []ctypes.Hash {
	n := int(decodeUint64(buf[0:8]))
	out := make([]ctypes.Hash, n)
	off := 8
	for i := 0; i < n; i++ {
		copy(out[i][:], buf[off:off+32])
		off += 32
	}
	return out
}

func encodeInput(in ctypes.Input) []byte {
	var buf []byte
	buf = append(buf, uint8(in.Kind))
	buf = append(buf, encodeUint64(in.GenHeight)...)
	buf = append(buf, encodeUint64(in.Amount)...)
	buf = append(buf, encodeUint64(uint64(len(in.KeyOffsets)))...)
	for _, o := range in.KeyOffsets {
		buf = append(buf, encodeUint64(o)...)
	}
	buf = append(buf, in.KeyImage[:]...)
	return buf
}

func decodeInput(buf []byte, off int) (ctypes.Input, int) {
	var in ctypes.Input
	in.Kind = ctypes.InputKind(buf[off])
	off++
	in.GenHeight = decodeUint64(buf[off : off+8])
	off += 8
	in.Amount = decodeUint64(buf[off : off+8])
	off += 8
	n := int(decodeUint64(buf[off : off+8]))
	off += 8
	in.KeyOffsets = make([]uint64, n)
	for i := 0; i < n; i++ {
		in.KeyOffsets[i] = decodeUint64(buf[off : off+8])
		off += 8
	}
	copy(in.KeyImage[:], buf[off:off+32])
	off += 32
	return in, off
}

func encodeOutput(o ctypes.Output) []byte {
	buf := make([]byte, 0, 8+32+2)
	buf = append(buf, encodeUint64(o.Amount)...)
	buf = append(buf, o.PublicKey[:]...)
	if o.ViewTag != nil {
		buf = append(buf, 1, *o.ViewTag)
	} else {
		buf = append(buf, 0, 0)
	}
	return buf
}

func decodeOutput(buf []byte, off int) (ctypes.Output, int) {
	var o ctypes.Output
	o.Amount = decodeUint64(buf[off : off+8])
	off += 8
	copy(o.PublicKey[:], buf[off:off+32])
	off += 32
	present := buf[off]
	tag := buf[off+1]
	off += 2
	if present == 1 {
		o.ViewTag = &tag
	}
	return o, off
}

func encodeTransaction(tx ctypes.Transaction) []byte {
	var buf []byte
	buf = append(buf, uint8(tx.Version))
	buf = append(buf, uint8(tx.AdditionalTimelock.Kind))
	buf = append(buf, encodeUint64(tx.AdditionalTimelock.Value)...)

	buf = append(buf, encodeUint64(uint64(len(tx.Inputs)))...)
	for _, in := range tx.Inputs {
		buf = append(buf, encodeInput(in)...)
	}

	buf = append(buf, encodeUint64(uint64(len(tx.Outputs)))...)
	for _, o := range tx.Outputs {
		buf = append(buf, encodeOutput(o)...)
	}

	putBytes(&buf, tx.Extra)

	if tx.Rct != nil {
		buf = append(buf, 1)
		buf = append(buf, encodeUint64(uint64(len(tx.Rct.PseudoOuts)))...)
		for _, h := range tx.Rct.PseudoOuts {
			buf = append(buf, h[:]...)
		}
		buf = append(buf, encodeUint64(uint64(len(tx.Rct.Commitments)))...)
		for _, h := range tx.Rct.Commitments {
			buf = append(buf, h[:]...)
		}
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, encodeUint64(tx.Fee)...)
	buf = append(buf, encodeUint64(tx.Weight)...)
	buf = append(buf, encodeUint64(tx.BlobLen)...)
	return buf
}

func decodeTransaction(buf []byte) ctypes.Transaction {
	var tx ctypes.Transaction
	off := 0
	tx.Version = ctypes.TxVersion(buf[off])
	off++
	tx.AdditionalTimelock.Kind = ctypes.TimeLockKind(buf[off])
	off++
	tx.AdditionalTimelock.Value = decodeUint64(buf[off : off+8])
	off += 8

	nIn := int(decodeUint64(buf[off : off+8]))
	off += 8
	tx.Inputs = make([]ctypes.Input, nIn)
	for i := 0; i < nIn; i++ {
		tx.Inputs[i], off = decodeInput(buf, off)
	}

	nOut := int(decodeUint64(buf[off : off+8]))
	off += 8
	tx.Outputs = make([]ctypes.Output, nOut)
	for i := 0; i < nOut; i++ {
		tx.Outputs[i], off = decodeOutput(buf, off)
	}

	tx.Extra, off = takeBytes(buf, off)

	hasRct := buf[off]
	off++
	if hasRct == 1 {
		tx.Rct = &ctypes.RingCTSignatures{}
		nPseudo := int(decodeUint64(buf[off : off+8]))
		off += 8
		tx.Rct.PseudoOuts = make([]ctypes.Hash, nPseudo)
		for i := 0; i < nPseudo; i++ {
			copy(tx.Rct.PseudoOuts[i][:], buf[off:off+32])
			off += 32
		}
		nCommit := int(decodeUint64(buf[off : off+8]))
		off += 8
		tx.Rct.Commitments = make([]ctypes.Hash, nCommit)
		for i := 0; i < nCommit; i++ {
			copy(tx.Rct.Commitments[i][:], buf[off:off+32])
			off += 32
		}
	}

	tx.Fee = decodeUint64(buf[off : off+8])
	off += 8
	tx.Weight = decodeUint64(buf[off : off+8])
	off += 8
	tx.BlobLen = decodeUint64(buf[off : off+8])
	return tx
}

// encodeOutputIdList/decodeOutputIdList and encodeKeyImageList/
// decodeKeyImageList back the outputRefs/keyImageRefs side tables: the set
// of pre-RCT output keys and key images a single transaction contributed,
// so PopBlocks can remove exactly what WriteBlock added without rescanning.

func encodeOutputIdList(ids []ctypes.OutputId) []byte {
	buf := encodeUint64(uint64(len(ids)))
	for _, id := range ids {
		buf = append(buf, encodeUint64(id.Amount)...)
		buf = append(buf, encodeUint64(id.AmountIndex)...)
	}
	return buf
}

func decodeOutputIdList(buf []byte) []ctypes.OutputId {
	n := int(decodeUint64(buf[0:8]))
	out := make([]ctypes.OutputId, n)
	off := 8
	for i := 0; i < n; i++ {
		out[i].Amount = decodeUint64(buf[off : off+8])
		out[i].AmountIndex = decodeUint64(buf[off+8 : off+16])
		off += 16
	}
	return out
}

func encodeKeyImageList(kis []ctypes.KeyImage) []byte {
	buf := encodeUint64(uint64(len(kis)))
	for _, ki := range kis {
		buf = append(buf, ki[:]...)
	}
	return buf
}

func decodeKeyImageList(buf []byte) []ctypes.KeyImage {
	n := int(decodeUint64(buf[0:8]))
	out := make([]ctypes.KeyImage, n)
	off := 8
	for i := 0; i < n; i++ {
		copy(out[i][:], buf[off:off+32])
		off += 32
	}
	return out
}

// altBlockHeightRecord encodes (chain_id, height) for AltBlockHeights.
func encodeAltBlockHeightRecord(chain ctypes.ChainId, height uint64) []byte {
	buf := make([]byte, 16+8)
	copy(buf[0:16], chain[:])
	binary.LittleEndian.PutUint64(buf[16:24], height)
	return buf
}

func decodeAltBlockHeightRecord(buf []byte) (ctypes.ChainId, uint64) {
	var chain ctypes.ChainId
	copy(chain[:], buf[0:16])
	return chain, binary.LittleEndian.Uint64(buf[16:24])
}

// altChainInfoRecord encodes AltChainInfo minus its own ChainId (the key).
func encodeAltChainInfo(info *ctypes.AltChainInfo) []byte {
	buf := make([]byte, 16+8+8+1)
	copy(buf[0:16], info.ParentChain.AltId[:])
	binary.LittleEndian.PutUint64(buf[16:24], info.CommonAncestorHeight)
	binary.LittleEndian.PutUint64(buf[24:32], info.ChainHeight)
	if info.ParentChain.IsMain() {
		buf[32] = 0
	} else {
		buf[32] = 1
	}
	return buf
}

func decodeAltChainInfo(chain ctypes.ChainId, buf []byte) *ctypes.AltChainInfo {
	info := &ctypes.AltChainInfo{ChainId: chain}
	var parentId ctypes.ChainId
	copy(parentId[:], buf[0:16])
	info.CommonAncestorHeight = binary.LittleEndian.Uint64(buf[16:24])
	info.ChainHeight = binary.LittleEndian.Uint64(buf[24:32])
	if buf[32] == 1 {
		info.ParentChain = ctypes.Alt(parentId)
	} else {
		info.ParentChain = ctypes.Main
	}
	return info
}

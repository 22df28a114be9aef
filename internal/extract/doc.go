package extract

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"docsummary/internal/format"
)

// Word 97-2003 file information block offsets.
const (
	fibIdent      = 0xA5EC
	fibFlagsOff   = 0x000A
	fibCcpTextOff = 0x004C
	fibFcClxOff   = 0x01A2
	fibLcbClxOff  = 0x01A6
	fibMinSize    = 0x01AA

	fibFlagEncrypted = 0x0100
	fibFlagWhichTbl  = 0x0200

	pieceCompressed = 0x40000000
	pieceFcMask     = 0x3FFFFFFF

	// maxStreamSize caps each compound file stream read into memory.
	maxStreamSize = 256 << 20
)

// extractBinaryDoc opens the compound file and hands the WordDocument and
// table streams to parseWordStreams.
func extractBinaryDoc(ctx context.Context, data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", malformed(format.TypeWordLegacy, fmt.Errorf("open compound file: %w", err))
	}

	streams := make(map[string][]byte, 3)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		entry, err := doc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", malformed(format.TypeWordLegacy, fmt.Errorf("walk compound file: %w", err))
		}
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
		default:
			continue
		}
		if len(entry.Path) > 0 {
			// only root-level streams belong to the main document
			continue
		}
		if entry.Size > maxStreamSize {
			return "", malformed(format.TypeWordLegacy, fmt.Errorf("stream %s too large: %d bytes", entry.Name, entry.Size))
		}
		buf, err := io.ReadAll(io.LimitReader(entry, entry.Size))
		if err != nil {
			return "", malformed(format.TypeWordLegacy, fmt.Errorf("read stream %s: %w", entry.Name, err))
		}
		streams[entry.Name] = buf
	}

	wordDoc, ok := streams["WordDocument"]
	if !ok {
		return "", malformed(format.TypeWordLegacy, errors.New("WordDocument stream not found"))
	}
	tableName := "0Table"
	if len(wordDoc) >= fibFlagsOff+2 && binary.LittleEndian.Uint16(wordDoc[fibFlagsOff:])&fibFlagWhichTbl != 0 {
		tableName = "1Table"
	}
	table, ok := streams[tableName]
	if !ok {
		return "", malformed(format.TypeWordLegacy, fmt.Errorf("%s stream not found", tableName))
	}

	text, err := parseWordStreams(wordDoc, table)
	if err != nil {
		return "", malformed(format.TypeWordLegacy, err)
	}
	return text, nil
}

// parseWordStreams reads the main document text through the piece table.
// Field codes are dropped and their results kept. Paragraph and cell marks
// become newlines and tabs.
func parseWordStreams(wordDoc, table []byte) (string, error) {
	if len(wordDoc) < fibMinSize {
		return "", fmt.Errorf("file information block truncated: %d bytes", len(wordDoc))
	}
	if ident := binary.LittleEndian.Uint16(wordDoc); ident != fibIdent {
		return "", fmt.Errorf("unexpected FIB identifier %#04x", ident)
	}
	flags := binary.LittleEndian.Uint16(wordDoc[fibFlagsOff:])
	if flags&fibFlagEncrypted != 0 {
		return "", errors.New("document is encrypted")
	}
	ccpText := int64(int32(binary.LittleEndian.Uint32(wordDoc[fibCcpTextOff:])))
	fcClx := int64(binary.LittleEndian.Uint32(wordDoc[fibFcClxOff:]))
	lcbClx := int64(binary.LittleEndian.Uint32(wordDoc[fibLcbClxOff:]))
	if ccpText < 0 {
		return "", fmt.Errorf("negative text length %d", ccpText)
	}
	if lcbClx == 0 || fcClx+lcbClx > int64(len(table)) {
		return "", fmt.Errorf("piece table out of range: fc=%d lcb=%d table=%d", fcClx, lcbClx, len(table))
	}

	plc, err := findPlcPcd(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}
	n := (len(plc) - 4) / 12
	if n <= 0 || 4*(n+1)+8*n > len(plc) {
		return "", fmt.Errorf("piece table has invalid size %d", len(plc))
	}

	var raw strings.Builder
	pcds := plc[4*(n+1):]
	for i := 0; i < n; i++ {
		cpStart := int64(binary.LittleEndian.Uint32(plc[4*i:]))
		cpEnd := int64(binary.LittleEndian.Uint32(plc[4*(i+1):]))
		if cpStart >= ccpText {
			break
		}
		if cpEnd > ccpText {
			cpEnd = ccpText
		}
		if cpEnd <= cpStart {
			continue
		}
		fc := binary.LittleEndian.Uint32(pcds[8*i+2:])
		piece, err := readPiece(wordDoc, fc, cpEnd-cpStart)
		if err != nil {
			return "", fmt.Errorf("piece %d: %w", i, err)
		}
		raw.WriteString(piece)
	}
	return cleanWordText(raw.String()), nil
}

// findPlcPcd skips the property entries at the head of a Clx and returns
// the PlcPcd body.
func findPlcPcd(clx []byte) ([]byte, error) {
	for pos := 0; pos < len(clx); {
		switch clx[pos] {
		case 0x01:
			if pos+3 > len(clx) {
				return nil, errors.New("truncated Prc entry")
			}
			cb := int(int16(binary.LittleEndian.Uint16(clx[pos+1:])))
			if cb < 0 {
				return nil, fmt.Errorf("negative Prc size %d", cb)
			}
			pos += 3 + cb
		case 0x02:
			if pos+5 > len(clx) {
				return nil, errors.New("truncated Pcdt entry")
			}
			lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
			start := pos + 5
			if lcb < 0 || start+lcb > len(clx) {
				return nil, fmt.Errorf("Pcdt size %d exceeds Clx", lcb)
			}
			return clx[start : start+lcb], nil
		default:
			return nil, fmt.Errorf("unexpected Clx entry type %#02x at %d", clx[pos], pos)
		}
	}
	return nil, errors.New("Pcdt not found in Clx")
}

func readPiece(wordDoc []byte, fc uint32, chars int64) (string, error) {
	if fc&pieceCompressed != 0 {
		off := int64(fc&pieceFcMask) / 2
		if off+chars > int64(len(wordDoc)) {
			return "", fmt.Errorf("compressed piece out of range: off=%d len=%d", off, chars)
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(wordDoc[off : off+chars])
		if err != nil {
			return "", fmt.Errorf("decode cp1252: %w", err)
		}
		return string(out), nil
	}
	off := int64(fc)
	if off+2*chars > int64(len(wordDoc)) {
		return "", fmt.Errorf("unicode piece out of range: off=%d len=%d", off, chars)
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(wordDoc[off : off+2*chars])
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(out), nil
}

// cleanWordText maps Word control characters onto plain text.
func cleanWordText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	// one entry per open field: true once the separator has been seen
	var fields []bool
	for _, r := range s {
		switch r {
		case 0x13:
			fields = append(fields, false)
			continue
		case 0x14:
			if len(fields) > 0 {
				fields[len(fields)-1] = true
			}
			continue
		case 0x15:
			if len(fields) > 0 {
				fields = fields[:len(fields)-1]
			}
			continue
		}
		if inFieldCode(fields) {
			continue
		}
		switch {
		case r == '\r', r == 0x0B, r == 0x0C, r == 0x0E:
			sb.WriteByte('\n')
		case r == 0x07:
			sb.WriteByte('\t')
		case r == 0x1E:
			sb.WriteByte('-')
		case r == '\t', r == '\n':
			sb.WriteRune(r)
		case r < 0x20:
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func inFieldCode(fields []bool) bool {
	for _, result := range fields {
		if !result {
			return true
		}
	}
	return false
}

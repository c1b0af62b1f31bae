package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-stomp/stomp/v3/frame"
)

// errTruncatedFrame — кадр оборван: нет NUL-терминатора или тело короче content-length.
var errTruncatedFrame = errors.New("truncated frame")

// decodeFrames разбирает одно WebSocket-сообщение в STOMP-кадры.
// Сообщение из одних heart-beat'ов даёт пустой срез. Неполный кадр
// в любом месте сообщения делает ошибочным всё сообщение.
func decodeFrames(data []byte) ([]*frame.Frame, error) {
	const op = "realtime.codec.decodeFrames"

	chunks, err := splitFrames(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]*frame.Frame, 0, len(chunks))
	for _, chunk := range chunks {
		f, err := frame.NewReader(bytes.NewReader(chunk)).Read()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if f == nil {
			return nil, fmt.Errorf("%s: %w", op, errTruncatedFrame)
		}
		out = append(out, f)
	}

	return out, nil
}

// splitFrames режет сообщение по границам кадров, пропуская heart-beat EOL.
// Граница определяется content-length, а без него первым NUL после заголовков.
func splitFrames(data []byte) ([][]byte, error) {
	var chunks [][]byte

	i := 0
	for i < len(data) {
		switch {
		case data[i] == '\n':
			i++
			continue
		case data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n':
			i += 2
			continue
		}

		body, length, err := scanHeaders(data[i:])
		if err != nil {
			return nil, err
		}
		body += i

		var end int
		if length >= 0 {
			if body+length >= len(data) || data[body+length] != 0 {
				return nil, errTruncatedFrame
			}
			end = body + length + 1
		} else {
			k := bytes.IndexByte(data[body:], 0)
			if k < 0 {
				return nil, errTruncatedFrame
			}
			end = body + k + 1
		}

		chunks = append(chunks, data[i:end])
		i = end
	}

	return chunks, nil
}

// scanHeaders находит начало тела кадра и значение content-length (-1, если его нет).
// При повторе заголовка действует первое значение.
func scanHeaders(data []byte) (body, length int, err error) {
	length = -1
	seen := false

	j := 0
	for first := true; ; first = false {
		nl := bytes.IndexByte(data[j:], '\n')
		if nl < 0 {
			return 0, 0, errTruncatedFrame
		}
		line := bytes.TrimSuffix(data[j:j+nl], []byte("\r"))
		j += nl + 1

		if len(line) == 0 && !first {
			return j, length, nil
		}
		if first || seen {
			continue
		}

		if v, ok := bytes.CutPrefix(line, []byte(frame.ContentLength+":")); ok {
			seen = true
			n, convErr := strconv.Atoi(string(v))
			if convErr != nil || n < 0 {
				return 0, 0, fmt.Errorf("invalid content-length %q", v)
			}
			length = n
		}
	}
}

func encodeFrame(f *frame.Frame) ([]byte, error) {
	const op = "realtime.codec.encodeFrame"

	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

// errorFrame строит ERROR-кадр. receipt переносится в receipt-id, если задан.
func errorFrame(message, receipt string) *frame.Frame {
	f := frame.New(frame.ERROR,
		frame.Message, message,
		frame.ContentType, "text/plain",
	)
	if receipt != "" {
		f.Header.Set(frame.ReceiptId, receipt)
	}
	f.Body = []byte(message)

	return f
}

func receiptFrame(receipt string) *frame.Frame {
	return frame.New(frame.RECEIPT, frame.ReceiptId, receipt)
}

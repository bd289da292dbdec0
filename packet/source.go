package packet

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const pcapngMagic = 0x0A0D0D0A

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// File reads packets from an offline pcap or pcapng capture.
type File struct {
	f      *os.File
	reader packetReader
}

// Open detects the capture format of path and prepares it for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, 1<<16)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("packet: %s: %w", path, err)
	}

	var r packetReader
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("packet: %s: %w", path, err)
	}
	return &File{f: f, reader: r}, nil
}

// LinkType of the capture.
func (c *File) LinkType() layers.LinkType {
	return c.reader.LinkType()
}

// Each decodes every packet and calls fn with it, stopping at the end of
// the capture, on ctx cancellation or on the first error from fn.
func (c *File) Each(ctx context.Context, fn func(gopacket.Packet) error) error {
	opts := gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ci, err := c.reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("packet: read: %w", err)
		}
		raw := gopacket.NewPacket(data, c.reader.LinkType(), opts)
		md := raw.Metadata()
		md.CaptureInfo = ci
		md.Truncated = md.Truncated || ci.CaptureLength < ci.Length
		if err := fn(raw); err != nil {
			return err
		}
	}
}

func (c *File) Close() error {
	return c.f.Close()
}

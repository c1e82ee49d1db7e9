package loader_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/loader"
)

var _ = Describe("Flat Loader", func() {
	image := wordsToBytes(
		insts.ADDI(5, 0, 10),
		insts.ADD(6, 5, 5),
		insts.SW(6, 0, 0),
	)

	It("should place the image at address 0", func() {
		prog, err := loader.LoadFlat(bytes.NewReader(image))
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.Entry).To(BeZero())
		Expect(prog.Segments).To(HaveLen(1))
		Expect(prog.Segments[0].Addr).To(BeZero())
		Expect(prog.Segments[0].Data).To(Equal(image))
		Expect(prog.Segments[0].Executable()).To(BeTrue())
		Expect(prog.End()).To(Equal(uint32(12)))
	})

	It("should reject an image of partial words", func() {
		_, err := loader.LoadFlat(bytes.NewReader([]byte{1, 2, 3}))
		Expect(err).To(HaveOccurred())
	})

	It("should accept an empty image", func() {
		prog, err := loader.LoadFlat(bytes.NewReader(nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.End()).To(BeZero())
	})

	It("should build the same program from words", func() {
		prog := loader.FromWords(
			insts.ADDI(5, 0, 10),
			insts.ADD(6, 5, 5),
			insts.SW(6, 0, 0),
		)
		Expect(prog.Segments[0].Data).To(Equal(image))
		Expect(prog.End()).To(Equal(uint32(12)))
	})

	Describe("Load", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "flat-loader-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should read a flat file", func() {
			path := filepath.Join(tempDir, "prog.bin")
			Expect(os.WriteFile(path, image, 0644)).To(Succeed())

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments[0].Data).To(Equal(image))
		})

		It("should read a file shorter than the ELF magic", func() {
			path := filepath.Join(tempDir, "short.bin")
			Expect(os.WriteFile(path, nil, 0644)).To(Succeed())

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.End()).To(BeZero())
		})

		It("should fail for a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.bin"))
			Expect(err).To(HaveOccurred())
		})
	})
})

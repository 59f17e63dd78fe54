package llm_test

import (
	"context"
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	commonllm "rootsignal.dev/scout/common/llm"
	"rootsignal.dev/scout/internal/scout/llm"
)

func TestScoutLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "scout llm suite")
}

type fakeClient struct {
	response string
	err      error
}

func (f fakeClient) Chat(_ context.Context, _ commonllm.Request, result any) (*commonllm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &commonllm.Response{}, json.Unmarshal([]byte(f.response), result)
}

func (f fakeClient) Model() string { return "fake" }

var _ = Describe("Verifier", func() {
	It("treats a literal NO as unverified", func() {
		v := llm.NewVerifier(fakeClient{response: `{"answer":"NO"}`})
		explanation, ok, err := v.VerifyResponds(context.Background(), "eviction wave", "", "rent fund", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(explanation).To(BeEmpty())
	})

	It("returns the explanation when verified", func() {
		v := llm.NewVerifier(fakeClient{response: `{"answer":"It provides emergency rent assistance."}`})
		explanation, ok, err := v.VerifyResponds(context.Background(), "eviction wave", "", "rent fund", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(explanation).To(Equal("It provides emergency rent assistance."))
	})
})

var _ = Describe("SeedGenerator", func() {
	It("returns bootstrap queries", func() {
		g := llm.NewSeedGenerator(fakeClient{response: `{"queries":["a","b","c"]}`})
		qs, err := g.BootstrapQueries(context.Background(), "Minneapolis")
		Expect(err).NotTo(HaveOccurred())
		Expect(qs).To(Equal([]string{"a", "b", "c"}))
	})
})

var _ = Describe("Extractor", func() {
	It("returns an empty slice for content with nothing civic-relevant", func() {
		e := llm.NewExtractor(fakeClient{response: `{"signals":[]}`}, "Minneapolis")
		signals, err := e.Extract(context.Background(), "https://example.com", "just ads")
		Expect(err).NotTo(HaveOccurred())
		Expect(signals).To(BeEmpty())
	})
})

package streamsim

import (
	"crypto/rand"
	"math/big"

	"github.com/planetforge/engine/internal/domain/model"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	personaCount       = 4
)

// Developer personas. Each biases the generated samples toward a coding
// style so simulated planets evolve along different skill mixes.
const (
	personaMethodical = 0
	personaModular    = 1
	personaComplex    = 2
	personaPragmatic  = 3
)

// languages cycled through by the generator.
var languages = []string{"python", "javascript", "typescript", "go", "rust", "java"}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSample produces one metrics sample shaped by the persona.
func generateSample(persona int) model.MetricsSample {
	lines := 20 + randomInt(180)
	sample := model.MetricsSample{
		Lines:         lines,
		Language:      languages[randomInt(len(languages))],
		EditLatencyMS: 50 + getRandomFloat()*400,
		CharsChanged:  10 + randomInt(500),
		Keystrokes:    20 + randomInt(800),
	}

	switch persona {
	case personaMethodical:
		// Heavy commenter, moderate structure.
		sample.Comments = int(float64(lines) * (0.18 + getRandomFloat()*0.15))
		sample.Functions = lines / 20
		sample.Complexity = 1 + getRandomFloat()*3
	case personaModular:
		// Many small functions, few comments.
		sample.Functions = lines / 8
		sample.Classes = 1 + randomInt(3)
		sample.Comments = int(float64(lines) * getRandomFloat() * 0.08)
		sample.Complexity = 2 + getRandomFloat()*3
	case personaComplex:
		// Deeply nested logic, sparse structure.
		sample.Complexity = 6 + getRandomFloat()*6
		sample.Functions = 1 + lines/40
		sample.Comments = randomInt(lines / 10)
	default:
		// Pragmatic: a bit of everything.
		sample.Functions = lines / 15
		sample.Comments = int(float64(lines) * getRandomFloat() * 0.12)
		sample.Complexity = 1 + getRandomFloat()*5
	}

	sample.HasErrorHandling = getRandomFloat() > 0.4
	sample.HasAsync = getRandomFloat() > 0.6
	return sample
}

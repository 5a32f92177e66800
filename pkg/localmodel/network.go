package localmodel

import (
	"math"
	"math/rand/v2"
)

// bceClamp keeps log() away from zero in the loss
const bceClamp = 1e-7

// layer is a dense layer with row-major weights: W[o*In+i]
type layer struct {
	In  int
	Out int
	W   []float64
	B   []float64
}

// network is a small feed-forward regressor: ReLU hidden layers and a single
// sigmoid output.
type network struct {
	layers []*layer
}

func newNetwork(sizes []int, rng *rand.Rand) *network {
	n := &network{}
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6 / float64(in+out))

		ly := &layer{
			In:  in,
			Out: out,
			W:   make([]float64, in*out),
			B:   make([]float64, out),
		}
		for i := range ly.W {
			ly.W[i] = (rng.Float64()*2 - 1) * limit
		}
		if l < len(sizes)-2 {
			for i := range ly.B {
				ly.B[i] = 0.01
			}
		}
		n.layers = append(n.layers, ly)
	}
	return n
}

// forward returns the activations of every layer (acts[0] is the input) and
// the pre-activations of every layer.
func (n *network) forward(x []float64) (acts, zs [][]float64) {
	acts = append(acts, x)
	a := x
	for li, ly := range n.layers {
		z := make([]float64, ly.Out)
		out := make([]float64, ly.Out)
		last := li == len(n.layers)-1

		for o := 0; o < ly.Out; o++ {
			sum := ly.B[o]
			row := ly.W[o*ly.In : (o+1)*ly.In]
			for i, v := range a {
				sum += row[i] * v
			}
			z[o] = sum
			if last {
				out[o] = sigmoid(sum)
			} else {
				out[o] = math.Max(0, sum)
			}
		}

		zs = append(zs, z)
		acts = append(acts, out)
		a = out
	}
	return acts, zs
}

func (n *network) predict(x []float64) float64 {
	acts, _ := n.forward(x)
	return acts[len(acts)-1][0]
}

// backward adds the binary cross-entropy gradients of one sample into gW and
// gB and returns the sample loss. With a sigmoid output the output delta
// reduces to p - y.
func (n *network) backward(x []float64, y float64, gW, gB [][]float64) float64 {
	acts, zs := n.forward(x)
	p := acts[len(acts)-1][0]

	delta := []float64{p - y}
	for li := len(n.layers) - 1; li >= 0; li-- {
		ly := n.layers[li]
		in := acts[li]
		for o := 0; o < ly.Out; o++ {
			gB[li][o] += delta[o]
			for i := 0; i < ly.In; i++ {
				gW[li][o*ly.In+i] += delta[o] * in[i]
			}
		}
		if li == 0 {
			break
		}

		prev := make([]float64, ly.In)
		for i := 0; i < ly.In; i++ {
			if zs[li-1][i] <= 0 {
				continue
			}
			var sum float64
			for o := 0; o < ly.Out; o++ {
				sum += ly.W[o*ly.In+i] * delta[o]
			}
			prev[i] = sum
		}
		delta = prev
	}

	return bce(p, y)
}

// params lists every trainable slice in a fixed order: W0, B0, W1, B1, ...
func (n *network) params() [][]float64 {
	out := make([][]float64, 0, len(n.layers)*2)
	for _, ly := range n.layers {
		out = append(out, ly.W, ly.B)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func bce(p, y float64) float64 {
	p = math.Max(bceClamp, math.Min(1-bceClamp, p))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

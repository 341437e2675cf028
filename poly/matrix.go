package poly

import "fmt"

// Matrix is a dense row-major matrix of ring elements.
type Matrix struct {
	rows, cols int
	cells      []*Element
}

// NewMatrix allocates a rows×cols matrix and fills each cell with init(i, j).
func NewMatrix(rows, cols int, init func(i, j int) *Element) *Matrix {
	m := &Matrix{rows: rows, cols: cols, cells: make([]*Element, rows*cols)}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.cells[i*cols+j] = init(i, j)
		}
	}
	return m
}

// ZeroMatrix allocates a rows×cols matrix of zero elements in format f.
func ZeroMatrix(r *Ring, rows, cols int, f Format) *Matrix {
	return NewMatrix(rows, cols, func(int, int) *Element { return r.NewElement(f) })
}

// Column builds an n×1 matrix from elems. The elements are not copied.
func Column(elems []*Element) *Matrix {
	return NewMatrix(len(elems), 1, func(i, _ int) *Element { return elems[i] })
}

// Row builds a 1×n matrix from elems. The elements are not copied.
func Row(elems []*Element) *Matrix {
	return NewMatrix(1, len(elems), func(_, j int) *Element { return elems[j] })
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) *Element {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("poly: index (%d,%d) out of range for %dx%d matrix", i, j, m.rows, m.cols))
	}
	return m.cells[i*m.cols+j]
}

// Set replaces the element at (i, j).
func (m *Matrix) Set(i, j int, e *Element) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("poly: index (%d,%d) out of range for %dx%d matrix", i, j, m.rows, m.cols))
	}
	m.cells[i*m.cols+j] = e
}

// Elements returns the cells in row-major order. The slice aliases m.
func (m *Matrix) Elements() []*Element { return m.cells }

// CopyNew returns a deep copy.
func (m *Matrix) CopyNew() *Matrix {
	return NewMatrix(m.rows, m.cols, func(i, j int) *Element { return m.At(i, j).CopyNew() })
}

// SwitchFormat converts every cell in place.
func (m *Matrix) SwitchFormat(f Format) *Matrix {
	for _, e := range m.cells {
		e.SwitchFormat(f)
	}
	return m
}

// Mul returns m·other. All cells must be in Evaluation format.
func (m *Matrix) Mul(r *Ring, other *Matrix) *Matrix {
	if m.cols != other.rows {
		panic(fmt.Sprintf("poly: cannot multiply %dx%d by %dx%d", m.rows, m.cols, other.rows, other.cols))
	}
	return NewMatrix(m.rows, other.cols, func(i, j int) *Element {
		acc := r.NewElement(Evaluation)
		for t := 0; t < m.cols; t++ {
			r.MulAdd(m.At(i, t), other.At(t, j), acc)
		}
		return acc
	})
}

// ScalarMul returns s·m for a ring element s in Evaluation format.
func (m *Matrix) ScalarMul(r *Ring, s *Element) *Matrix {
	return NewMatrix(m.rows, m.cols, func(i, j int) *Element {
		out := r.NewElement(Evaluation)
		r.Mul(s, m.At(i, j), out)
		return out
	})
}

// Add returns m + other cell-wise.
func (m *Matrix) Add(r *Ring, other *Matrix) *Matrix {
	if m.rows != other.rows || m.cols != other.cols {
		panic(fmt.Sprintf("poly: cannot add %dx%d and %dx%d", m.rows, m.cols, other.rows, other.cols))
	}
	return NewMatrix(m.rows, m.cols, func(i, j int) *Element {
		out := r.NewElement(m.At(i, j).Format())
		r.Add(m.At(i, j), other.At(i, j), out)
		return out
	})
}

// Equal reports cell-wise equality.
func (m *Matrix) Equal(other *Matrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i := range m.cells {
		if !m.cells[i].Equal(other.cells[i]) {
			return false
		}
	}
	return true
}

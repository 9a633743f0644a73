// Package rules wraps the chess rules library behind the small boundary the
// session engine needs: digests in, digests out. A digest is a full FEN
// string; the engine never inspects one beyond equality checks.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartingDigest is the canonical initial position.
const StartingDigest = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Applied describes the result of applying one move to a position.
type Applied struct {
	SAN     string
	UCI     string
	Digest  string
	Capture bool
	Check   bool
}

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

func gameFrom(digest string) (*nchess.Game, error) {
	fen, err := nchess.FEN(strings.TrimSpace(digest))
	if err != nil {
		return nil, fmt.Errorf("parse digest: %w", err)
	}
	return nchess.NewGame(fen), nil
}

// Turn reports which color moves next in the given position.
func Turn(digest string) (string, error) {
	game, err := gameFrom(digest)
	if err != nil {
		return "", err
	}
	if game.Position().Turn() == nchess.White {
		return "white", nil
	}
	return "black", nil
}

// Apply plays a coordinate move (e2, e4, optional promotion piece letter)
// against the digest and returns the resulting position.
func Apply(digest, from, to, promotion string) (*Applied, error) {
	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + strings.TrimSpace(promotion))
	return applyNotation(digest, uci, nchess.UCINotation{})
}

// ApplySAN plays a move in algebraic notation against the digest.
func ApplySAN(digest, san string) (*Applied, error) {
	return applyNotation(digest, strings.TrimSpace(san), nchess.AlgebraicNotation{})
}

func applyNotation(digest, move string, notation nchess.Notation) (*Applied, error) {
	if move == "" {
		return nil, fmt.Errorf("empty move")
	}
	game, err := gameFrom(digest)
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	mv, err := notation.Decode(pos, move)
	if err != nil {
		return nil, fmt.Errorf("illegal move %q: %w", move, err)
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, fmt.Errorf("illegal move %q: %w", move, err)
	}
	return &Applied{
		SAN:     nchess.AlgebraicNotation{}.Encode(pos, mv),
		UCI:     mv.String(),
		Digest:  game.FEN(),
		Capture: mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
		Check:   mv.HasTag(nchess.Check),
	}, nil
}

// IsLegal reports whether the coordinate move is playable in the position.
func IsLegal(digest, from, to, promotion string) bool {
	_, err := Apply(digest, from, to, promotion)
	return err == nil
}

// LegalMoves lists every legal move in UCI form.
func LegalMoves(digest string) ([]string, error) {
	game, err := gameFrom(digest)
	if err != nil {
		return nil, err
	}
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, mv.String())
	}
	return out, nil
}

// Reconstruct replays a SAN move list from the starting position and returns
// the final digest.
func Reconstruct(sans []string) (string, error) {
	game := nchess.NewGame()
	for i, san := range sans {
		if err := game.PushNotationMove(strings.TrimSpace(san), nchess.AlgebraicNotation{}, nil); err != nil {
			return "", fmt.Errorf("replay move %d (%q): %w", i, san, err)
		}
	}
	return game.FEN(), nil
}

// Material sums piece values per side. Kings are excluded.
func Material(digest string) (white, black int, err error) {
	game, err := gameFrom(digest)
	if err != nil {
		return 0, 0, err
	}
	board := game.Position().Board()
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		piece := board.Piece(sq)
		if piece == nchess.NoPiece {
			continue
		}
		v := pieceValues[piece.Type()]
		if v == 0 {
			continue
		}
		if piece.Color() == nchess.White {
			white += v
		} else {
			black += v
		}
	}
	return white, black, nil
}

// Status reports the terminal outcome of a position: "white", "black" or
// "draw" plus the method ("checkmate", "stalemate", ...), or "" when the
// game is still in progress.
func Status(digest string) (outcome, method string) {
	game, err := gameFrom(digest)
	if err != nil {
		return "", ""
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		outcome = "white"
	case nchess.BlackWon:
		outcome = "black"
	case nchess.Draw:
		outcome = "draw"
	default:
		return "", ""
	}
	return outcome, strings.ToLower(game.Method().String())
}

// IsCheckmate reports whether the position is checkmate.
func IsCheckmate(digest string) bool {
	_, method := Status(digest)
	return method == "checkmate"
}

// IsStalemate reports whether the position is stalemate.
func IsStalemate(digest string) bool {
	_, method := Status(digest)
	return method == "stalemate"
}

// IsDraw reports whether the position is drawn by rule.
func IsDraw(digest string) bool {
	outcome, _ := Status(digest)
	return outcome == "draw"
}

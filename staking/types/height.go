package types

import "github.com/Fantom-foundation/lachesis-base/inter/idx"

// EpochIndex and BlockHeight reuse lachesis-base's index types rather than
// inventing parallel ones, the same way go-opera's own iblockproc package
// keys everything off idx.Epoch/idx.Block.
type EpochIndex = idx.Epoch
type BlockHeight = idx.Block

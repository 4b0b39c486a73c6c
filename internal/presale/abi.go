package presale

// presaleABI covers the four entry points the bundle touches.
const presaleABI = `[
  {"type":"function","name":"enablePresale","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"presale","inputs":[{"name":"quantity","type":"uint256"}],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"isPresaleActive","inputs":[],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"owner","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
]`
